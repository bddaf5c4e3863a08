package state

import (
	"encoding/json"
	"testing"
)

// TestProgressStoreFlatRoundTrip verifies the store serializes as one flat
// object with reserved "__" keys mixed in with record keys.
func TestProgressStoreFlatRoundTrip(t *testing.T) {
	p := NewProgressStore()
	p.Records["rt_p1_id_abc"] = &Record{Completed: true, Reps: []string{"12"}, Diff: []string{"hard"}, Wts: []string{"80"}}
	p.Title = "My Gym"
	p.Videos["bench-press"] = "https://example.com/v"
	p.Dates["rt_p1_w1_d1"] = "2026-09-01"

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("not a flat object: %v", err)
	}
	for _, k := range []string{"rt_p1_id_abc", "__title", "__videos", "__dates"} {
		if _, ok := flat[k]; !ok {
			t.Errorf("missing key %q in %s", k, data)
		}
	}

	var back ProgressStore
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rec := back.Records["rt_p1_id_abc"]
	if rec == nil || !rec.Completed || rec.Reps[0] != "12" {
		t.Errorf("record = %+v", rec)
	}
	if back.Title != "My Gym" {
		t.Errorf("title = %q", back.Title)
	}
	if back.Videos["bench-press"] == "" || back.Dates["rt_p1_w1_d1"] != "2026-09-01" {
		t.Errorf("videos/dates lost: %+v %+v", back.Videos, back.Dates)
	}
}

// TestProgressStoreEmptyOmitsReserved verifies an empty store serializes to an
// empty object, with no reserved keys for empty settings.
func TestProgressStoreEmptyOmitsReserved(t *testing.T) {
	data, err := json.Marshal(NewProgressStore())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("got %s, want {}", data)
	}
}

// TestProgressStoreUnknownReservedRoundTrip verifies unrecognized "__" keys
// written by other versions survive a load/save cycle.
func TestProgressStoreUnknownReservedRoundTrip(t *testing.T) {
	in := `{"__future_setting":{"x":1},"rt_p1_id_abc":{"completed":false,"reps":[""],"diff":[""],"wts":[""]}}`
	var p ProgressStore
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data, err := json.Marshal(&p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]json.RawMessage
	json.Unmarshal(data, &flat)
	if _, ok := flat["__future_setting"]; !ok {
		t.Errorf("unknown reserved key dropped: %s", data)
	}
}

// TestProgressStoreMalformedRecord verifies a record that fails to decode is
// preserved raw instead of poisoning the bucket.
func TestProgressStoreMalformedRecord(t *testing.T) {
	in := `{"rt_p1_id_bad":"not-a-record","rt_p1_id_ok":{"completed":true,"reps":[],"diff":[],"wts":[]}}`
	var p ProgressStore
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := p.Records["rt_p1_id_bad"]; ok {
		t.Error("malformed value decoded as a record")
	}
	if rec := p.Records["rt_p1_id_ok"]; rec == nil || !rec.Completed {
		t.Errorf("good record lost: %+v", rec)
	}
	data, _ := json.Marshal(&p)
	var flat map[string]json.RawMessage
	json.Unmarshal(data, &flat)
	if _, ok := flat["rt_p1_id_bad"]; !ok {
		t.Error("malformed value not round-tripped")
	}
}

// TestRecordResize verifies padding and truncation of the per-set arrays.
func TestRecordResize(t *testing.T) {
	r := NewRecord(2)
	r.Reps[0], r.Wts[1] = "10", "60"
	r.Resize(4)
	if len(r.Reps) != 4 || len(r.Diff) != 4 || len(r.Wts) != 4 {
		t.Fatalf("lengths = %d/%d/%d, want 4", len(r.Reps), len(r.Diff), len(r.Wts))
	}
	if r.Reps[0] != "10" || r.Wts[1] != "60" {
		t.Errorf("values lost on grow: %+v", r)
	}
	r.Resize(1)
	if len(r.Reps) != 1 || r.Reps[0] != "10" {
		t.Errorf("truncate: %+v", r)
	}
}

// TestProgressStoreMerge verifies merge overwrites matching keys and keeps the
// rest.
func TestProgressStoreMerge(t *testing.T) {
	dst := NewProgressStore()
	dst.Records["a"] = &Record{Completed: false, Reps: []string{""}, Diff: []string{""}, Wts: []string{""}}
	dst.Records["b"] = &Record{Completed: true, Reps: []string{""}, Diff: []string{""}, Wts: []string{""}}
	dst.Title = "Old"

	src := NewProgressStore()
	src.Records["a"] = &Record{Completed: true, Reps: []string{"12"}, Diff: []string{""}, Wts: []string{""}}
	src.Title = "New"

	dst.merge(src)
	if !dst.Records["a"].Completed || dst.Records["a"].Reps[0] != "12" {
		t.Errorf("overwritten record = %+v", dst.Records["a"])
	}
	if !dst.Records["b"].Completed {
		t.Error("untouched record lost")
	}
	if dst.Title != "New" {
		t.Errorf("title = %q, want New", dst.Title)
	}
}
