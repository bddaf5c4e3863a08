package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/storage"
)

// Versioned bucket keys. A profile name is suffixed when one is active.
const (
	storeKey          = "wt_store_ds9_v5"
	viewKey           = "wt_view_ds9_v2"
	userRoutinesKey   = "wt_user_routines_v1"
	currentProfileKey = "workout_current_user"
)

// AppTitleDefault is shown when no custom title is stored.
const AppTitleDefault = "Workout Tracker"

// Bucket names the three independently flushed state buckets.
type Bucket string

const (
	BucketStore    Bucket = "store"
	BucketView     Bucket = "view"
	BucketRoutines Bucket = "userRoutines"
)

// View is the single cursor into the data model.
type View struct {
	Routine string `json:"routine,omitempty"`
	Week    int    `json:"week"`
	Day     int    `json:"day"`
}

// normalize coerces week/day to usable numbers.
func (v *View) normalize() {
	if v.Week < 1 {
		v.Week = 1
	}
	if v.Day < 1 {
		v.Day = 1
	}
}

// Observer is notified after a bucket mutates.
type Observer func(b Bucket)

// Manager is the single owner of in-memory state. Mutations mark the touched
// bucket dirty and a short timer flushes full snapshots to the bucket store;
// Flush is also forced on shutdown so the last burst of edits survives.
// Buckets flush independently; there is no cross-bucket transaction.
type Manager struct {
	mu sync.Mutex
	db storage.BucketStore

	progress *ProgressStore
	view     View
	routines map[string]*routine.Routine

	profile  string
	profiles []string

	dirty      map[Bucket]bool
	flushTimer *time.Timer
	flushDelay time.Duration

	observers map[int]Observer
	nextObsID int

	log *slog.Logger
}

// NewManager creates a state manager over the given bucket store. profiles
// lists the allowed profile names; empty means single unnamed profile.
func NewManager(db storage.BucketStore, profiles []string, log *slog.Logger) *Manager {
	return &Manager{
		db:         db,
		progress:   NewProgressStore(),
		routines:   make(map[string]*routine.Routine),
		profiles:   profiles,
		dirty:      make(map[Bucket]bool),
		flushDelay: 500 * time.Millisecond,
		observers:  make(map[int]Observer),
		log:        log,
	}
}

// Load reads the persisted profile selection and all buckets. A corrupted or
// missing bucket falls back to empty rather than failing startup.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if raw, err := m.db.Load(ctx, currentProfileKey); err == nil && raw != nil {
		var name string
		if json.Unmarshal(raw, &name) == nil && m.profileAllowed(name) {
			m.profile = name
		}
	}
	m.loadBucketsLocked(ctx)
	return nil
}

func (m *Manager) profileAllowed(name string) bool {
	for _, p := range m.profiles {
		if p == name {
			return true
		}
	}
	return false
}

func (m *Manager) loadBucketsLocked(ctx context.Context) {
	m.progress = NewProgressStore()
	if raw := m.loadBucketRaw(ctx, m.bucketKey(storeKey)); raw != nil {
		if err := json.Unmarshal(raw, m.progress); err != nil {
			m.log.Warn("corrupted progress bucket, starting empty", "error", err)
			m.progress = NewProgressStore()
		}
	}

	m.view = View{}
	if raw := m.loadBucketRaw(ctx, m.bucketKey(viewKey)); raw != nil {
		if err := json.Unmarshal(raw, &m.view); err != nil {
			m.log.Warn("corrupted view bucket, starting empty", "error", err)
			m.view = View{}
		}
	}
	m.view.normalize()

	m.routines = make(map[string]*routine.Routine)
	if raw := m.loadBucketRaw(ctx, m.bucketKey(userRoutinesKey)); raw != nil {
		if err := json.Unmarshal(raw, &m.routines); err != nil {
			m.log.Warn("corrupted routines bucket, starting empty", "error", err)
			m.routines = make(map[string]*routine.Routine)
		}
	}
}

func (m *Manager) loadBucketRaw(ctx context.Context, key string) []byte {
	raw, err := m.db.Load(ctx, key)
	if err != nil {
		m.log.Warn("bucket load failed, starting empty", "key", key, "error", err)
		return nil
	}
	return raw
}

// bucketKey namespaces a base key by the active profile.
func (m *Manager) bucketKey(base string) string {
	if m.profile == "" {
		return base
	}
	return base + "_" + m.profile
}

// Subscribe registers an observer; the returned function unsubscribes it.
func (m *Manager) Subscribe(fn Observer) func() {
	m.mu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// markDirtyLocked flags a bucket and schedules a debounced flush. The first
// pending timer wins; later mutations ride along with it.
func (m *Manager) markDirtyLocked(b Bucket) {
	m.dirty[b] = true
	if m.flushTimer != nil {
		return
	}
	m.flushTimer = time.AfterFunc(m.flushDelay, func() {
		if err := m.Flush(context.Background()); err != nil {
			m.log.Error("debounced flush failed", "error", err)
		}
	})
}

// notify runs observers for a bucket. Called without the lock held.
func (m *Manager) notify(b Bucket) {
	m.mu.Lock()
	obs := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		obs = append(obs, fn)
	}
	m.mu.Unlock()
	for _, fn := range obs {
		fn(b)
	}
}

// Flush writes every dirty bucket's full snapshot. A bucket either writes
// completely or is retried on the next flush; buckets are independent.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

func (m *Manager) flushLocked(ctx context.Context) error {
	if m.flushTimer != nil {
		m.flushTimer.Stop()
		m.flushTimer = nil
	}
	var firstErr error
	save := func(b Bucket, key string, v any) {
		if !m.dirty[b] {
			return
		}
		data, err := json.Marshal(v)
		if err == nil {
			err = m.db.Save(ctx, key, data)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("flushing %s: %w", b, err)
			}
			return
		}
		m.dirty[b] = false
	}
	save(BucketStore, m.bucketKey(storeKey), m.progress)
	save(BucketView, m.bucketKey(viewKey), &m.view)
	save(BucketRoutines, m.bucketKey(userRoutinesKey), m.routines)
	return firstErr
}

// Close flushes outstanding changes.
func (m *Manager) Close(ctx context.Context) error {
	return m.Flush(ctx)
}

// View returns the current cursor.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// UserRoutine returns the user-owned routine with the given id, or nil.
func (m *Manager) UserRoutine(id string) *routine.Routine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routines[id]
}

// UserRoutines returns the user-owned routines keyed by id.
func (m *Manager) UserRoutines() map[string]*routine.Routine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*routine.Routine, len(m.routines))
	for k, v := range m.routines {
		out[k] = v
	}
	return out
}

// RoutineOptions lists the user's added routines as select options.
func (m *Manager) RoutineOptions() []RoutineOption {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RoutineOption, 0, len(m.routines))
	for _, rt := range m.routines {
		out = append(out, RoutineOption{Value: rt.ID, Label: rt.Name})
	}
	return out
}

// RoutineOption is a selectable routine.
type RoutineOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Profile returns the active profile name, empty when unnamed.
func (m *Manager) Profile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Profiles returns the configured profile names.
func (m *Manager) Profiles() []string {
	return append([]string(nil), m.profiles...)
}

// SetProfile switches the active profile and reloads every bucket from its
// namespaced keys. Pending changes for the old profile flush first.
func (m *Manager) SetProfile(ctx context.Context, name string) error {
	m.mu.Lock()
	if name != "" && !m.profileAllowed(name) {
		m.mu.Unlock()
		return fmt.Errorf("unknown profile %q", name)
	}
	if err := m.flushLocked(ctx); err != nil {
		m.log.Warn("flush before profile switch failed", "error", err)
	}
	m.profile = name
	data, _ := json.Marshal(name)
	if err := m.db.Save(ctx, currentProfileKey, data); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persisting profile selection: %w", err)
	}
	m.loadBucketsLocked(ctx)
	m.mu.Unlock()

	m.notify(BucketStore)
	m.notify(BucketView)
	m.notify(BucketRoutines)
	return nil
}
