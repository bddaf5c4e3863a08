package routine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Manifest is the fetched catalog of importable routine definitions.
type Manifest struct {
	Routines []ManifestEntry `json:"routines"`
}

// ManifestEntry points at one routine definition URL.
type ManifestEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// UserLookup consults the session's user-owned routines; it returns nil when
// the id is not user-owned. The state manager provides it.
type UserLookup func(id string) *Routine

// Service owns the remote routine catalog: the manifest, a cache of resolved
// library routines, and the resolver that turns definitions into routines.
// It is constructed explicitly and loaded before use rather than populated on
// first access.
type Service struct {
	mu       sync.Mutex
	manifest Manifest
	cache    map[string]*Routine

	resolver *Resolver
	client   *http.Client
	url      string
	users    UserLookup
	log      *slog.Logger
}

// NewService creates a routine service. manifestURL may be empty, in which
// case only user-owned and directly imported routines resolve.
func NewService(manifestURL string, exercises ExerciseLookup, users UserLookup, log *slog.Logger) *Service {
	s := &Service{
		cache:  make(map[string]*Routine),
		client: &http.Client{Timeout: 15 * time.Second},
		url:    manifestURL,
		users:  users,
		log:    log,
	}
	s.resolver = &Resolver{
		Exercises: exercises,
		Fetch:     s.fetch,
		LoadBase:  s.ensureLoaded,
		Log:       log,
	}
	return s
}

// LoadManifest fetches the routine catalog. A failed fetch leaves the previous
// manifest in place; startup proceeds without a catalog.
func (s *Service) LoadManifest(ctx context.Context) error {
	if s.url == "" {
		return nil
	}
	body, err := s.fetch(ctx, s.url)
	if err != nil {
		return fmt.Errorf("fetching manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	s.mu.Lock()
	s.manifest = m
	s.mu.Unlock()
	s.log.Info("routine manifest loaded", "routines", len(m.Routines))
	return nil
}

// ManifestEntries returns the catalog as last loaded.
func (s *Service) ManifestEntries() []ManifestEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ManifestEntry, len(s.manifest.Routines))
	copy(out, s.manifest.Routines)
	return out
}

// RoutineByID returns an already-available routine: user-owned first, then the
// remote cache. It never fetches.
func (s *Service) RoutineByID(id string) *Routine {
	if rt := s.users(id); rt != nil {
		return rt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[id]
}

// EnsureLoaded returns the routine with the given id, fetching and resolving
// its manifest definition on first use.
func (s *Service) EnsureLoaded(ctx context.Context, id string) (*Routine, error) {
	return s.ensureLoaded(ctx, id, map[string]bool{})
}

func (s *Service) ensureLoaded(ctx context.Context, id string, visited map[string]bool) (*Routine, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty routine id", ErrUnresolvable)
	}
	if visited[id] {
		return nil, fmt.Errorf("%w: %q", ErrDerivationCycle, id)
	}
	if rt := s.RoutineByID(id); rt != nil {
		return rt, nil
	}

	s.mu.Lock()
	var entry *ManifestEntry
	for i := range s.manifest.Routines {
		if s.manifest.Routines[i].ID == id {
			entry = &s.manifest.Routines[i]
			break
		}
	}
	s.mu.Unlock()
	if entry == nil {
		return nil, fmt.Errorf("%w: %q not in manifest", ErrUnresolvable, id)
	}

	visited[id] = true
	body, err := s.fetch(ctx, entry.Src)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %q: %v", ErrUnresolvable, id, err)
	}
	var def Definition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", ErrUnresolvable, id, err)
	}
	resolved, err := s.resolver.resolve(ctx, &def, visited)
	if err != nil {
		return nil, err
	}
	resolved.Rows = RefineRows(resolved.Rows)
	EnsureRowIDs(resolved)

	s.mu.Lock()
	s.cache[id] = resolved
	s.mu.Unlock()
	return resolved, nil
}

// ResolveDefinition resolves a definition that did not come from the manifest
// (file import, API upload). Derived definitions may still reach back into the
// manifest for their base.
func (s *Service) ResolveDefinition(ctx context.Context, def *Definition) (*Routine, error) {
	visited := map[string]bool{}
	if def != nil && def.ID != "" {
		visited[def.ID] = true
	}
	rt, err := s.resolver.resolve(ctx, def, visited)
	if err != nil {
		return nil, err
	}
	rt.Rows = RefineRows(rt.Rows)
	EnsureRowIDs(rt)
	return rt, nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
