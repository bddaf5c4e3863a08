// Package state owns the three persisted buckets (progress store, view
// cursor, user routines). All mutation funnels through the Manager, which
// notifies observers and performs debounced persistence.
package state

import (
	"encoding/json"
	"strings"
)

// Record tracks per-row completion, reps, difficulty, and weights. The three
// arrays are sized to the row's current set count.
type Record struct {
	Completed bool     `json:"completed"`
	Reps      []string `json:"reps"`
	Diff      []string `json:"diff"`
	Wts       []string `json:"wts"`
}

// NewRecord returns a zero-valued record sized for the given set count.
func NewRecord(sets int) *Record {
	return &Record{
		Reps: make([]string, sets),
		Diff: make([]string, sets),
		Wts:  make([]string, sets),
	}
}

// Resize pads or truncates the per-set arrays to match sets, reconciling the
// stored record after a routine edit changes the set count.
func (r *Record) Resize(sets int) {
	r.Reps = padSlice(r.Reps, sets)
	r.Diff = padSlice(r.Diff, sets)
	r.Wts = padSlice(r.Wts, sets)
}

// Clone returns an independent copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{Completed: r.Completed}
	c.Reps = append([]string(nil), r.Reps...)
	c.Diff = append([]string(nil), r.Diff...)
	c.Wts = append([]string(nil), r.Wts...)
	return c
}

func padSlice(s []string, n int) []string {
	if len(s) == n {
		return s
	}
	out := make([]string, n)
	copy(out, s)
	return out
}

// Reserved keys in the flat progress-store object. Everything not starting
// with "__" is a row progress record.
const (
	titleKey  = "__title"
	videosKey = "__videos"
	datesKey  = "__dates"
)

// ProgressStore is the flat key -> progress-record mapping plus a few reserved
// app-wide settings: a custom title, per-exercise video URL overrides (by
// slug), and date stamps keyed by routine+week+day. It serializes as one flat
// JSON object, reserved keys mixed in with record keys.
type ProgressStore struct {
	Records map[string]*Record
	Title   string
	Videos  map[string]string
	Dates   map[string]string

	// Unrecognized "__"-prefixed keys round-trip untouched.
	extra map[string]json.RawMessage
}

// NewProgressStore returns an empty store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		Records: make(map[string]*Record),
		Videos:  make(map[string]string),
		Dates:   make(map[string]string),
	}
}

// Clone returns an independent copy.
func (p *ProgressStore) Clone() *ProgressStore {
	c := NewProgressStore()
	c.Title = p.Title
	for k, v := range p.Records {
		c.Records[k] = v.Clone()
	}
	for k, v := range p.Videos {
		c.Videos[k] = v
	}
	for k, v := range p.Dates {
		c.Dates[k] = v
	}
	if len(p.extra) > 0 {
		c.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			c.extra[k] = v
		}
	}
	return c
}

// MarshalJSON renders the flat object form.
func (p *ProgressStore) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(p.Records)+3)
	for k, v := range p.Records {
		flat[k] = v
	}
	if p.Title != "" {
		flat[titleKey] = p.Title
	}
	if len(p.Videos) > 0 {
		flat[videosKey] = p.Videos
	}
	if len(p.Dates) > 0 {
		flat[datesKey] = p.Dates
	}
	for k, v := range p.extra {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat object form. Malformed record values are
// preserved raw rather than failing the whole bucket.
func (p *ProgressStore) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*p = *NewProgressStore()
	for k, raw := range flat {
		switch {
		case k == titleKey:
			json.Unmarshal(raw, &p.Title)
		case k == videosKey:
			json.Unmarshal(raw, &p.Videos)
		case k == datesKey:
			json.Unmarshal(raw, &p.Dates)
		case strings.HasPrefix(k, "__"):
			if p.extra == nil {
				p.extra = make(map[string]json.RawMessage)
			}
			p.extra[k] = raw
		default:
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				if p.extra == nil {
					p.extra = make(map[string]json.RawMessage)
				}
				p.extra[k] = raw
				continue
			}
			p.Records[k] = &rec
		}
	}
	if p.Videos == nil {
		p.Videos = make(map[string]string)
	}
	if p.Dates == nil {
		p.Dates = make(map[string]string)
	}
	return nil
}

// merge applies another store's entries on top of this one, Object-merge
// style: existing keys are overwritten, others kept.
func (p *ProgressStore) merge(other *ProgressStore) {
	for k, v := range other.Records {
		p.Records[k] = v.Clone()
	}
	if other.Title != "" {
		p.Title = other.Title
	}
	for k, v := range other.Videos {
		p.Videos[k] = v
	}
	for k, v := range other.Dates {
		p.Dates[k] = v
	}
	for k, v := range other.extra {
		if p.extra == nil {
			p.extra = make(map[string]json.RawMessage)
		}
		p.extra[k] = v
	}
}
