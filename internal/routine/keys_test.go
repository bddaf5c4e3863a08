package routine

import "testing"

// TestCanonicalKey verifies the id-based key form and its absence without an id.
func TestCanonicalKey(t *testing.T) {
	k, ok := CanonicalKey("p1", Row{RowID: "abc123"})
	if !ok || k != "rt_p1_id_abc123" {
		t.Errorf("got (%q, %v), want (rt_p1_id_abc123, true)", k, ok)
	}
	if _, ok := CanonicalKey("p1", Row{}); ok {
		t.Error("expected ok=false for a row without an id")
	}
}

// TestOrdinalKey verifies the position-based key, the explicit-ordinal
// override, and negative clamping.
func TestOrdinalKey(t *testing.T) {
	r := Row{Week: 2, Day: 3, Exercise: "Bench Press"}
	if k := OrdinalKey("p1", r, 1); k != "rt_p1_w2_d3_o1_bench-press" {
		t.Errorf("key = %q", k)
	}
	five := 5
	r.Ord = &five
	if k := OrdinalKey("p1", r, 1); k != "rt_p1_w2_d3_o5_bench-press" {
		t.Errorf("explicit ord key = %q", k)
	}
	neg := -2
	r.Ord = &neg
	if k := OrdinalKey("p1", r, 1); k != "rt_p1_w2_d3_o0_bench-press" {
		t.Errorf("clamped key = %q", k)
	}
}

// TestNameKey verifies the oldest key form.
func TestNameKey(t *testing.T) {
	if k := NameKey("p1", Row{Week: 1, Day: 1, Exercise: "Squat"}); k != "rt_p1_w1_d1_squat" {
		t.Errorf("key = %q", k)
	}
}

// TestKeyPrefixNone verifies the reserved prefix when no routine is selected.
func TestKeyPrefixNone(t *testing.T) {
	if p := KeyPrefix(""); p != "rt_none" {
		t.Errorf("prefix = %q, want rt_none", p)
	}
	r := Row{Week: 1, Day: 1, Exercise: "Squat"}
	if k := NameKey("", r); k != "rt_none_w1_d1_squat" {
		t.Errorf("key = %q", k)
	}
}

// TestKeyCandidatesOrder verifies candidates run newest scheme first, and the
// canonical entry disappears for id-less rows.
func TestKeyCandidatesOrder(t *testing.T) {
	r := Row{Week: 1, Day: 1, Exercise: "Squat", RowID: "abc"}
	cands := KeyCandidates("p1", r, 0)
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3", len(cands))
	}
	wantStrategies := []string{StrategyCanonical, StrategyOrdinal, StrategyName}
	for i, s := range wantStrategies {
		if cands[i].Strategy != s {
			t.Errorf("candidate %d strategy = %q, want %q", i, cands[i].Strategy, s)
		}
	}
	if cands[0].Key != "rt_p1_id_abc" {
		t.Errorf("canonical key = %q", cands[0].Key)
	}

	r.RowID = ""
	cands = KeyCandidates("p1", r, 0)
	if len(cands) != 2 || cands[0].Strategy != StrategyOrdinal {
		t.Errorf("id-less candidates = %+v", cands)
	}
}

// TestRowKeyPrefersCanonical verifies writes land on the canonical key when an
// id exists and fall back to the ordinal key otherwise.
func TestRowKeyPrefersCanonical(t *testing.T) {
	r := Row{Week: 1, Day: 1, Exercise: "Squat", RowID: "abc"}
	if k := RowKey("p1", r, 2); k != "rt_p1_id_abc" {
		t.Errorf("key = %q", k)
	}
	r.RowID = ""
	if k := RowKey("p1", r, 2); k != "rt_p1_w1_d1_o2_squat" {
		t.Errorf("fallback key = %q", k)
	}
}

// TestDateKey verifies the day date-stamp key form.
func TestDateKey(t *testing.T) {
	if k := DateKey("p1", 3, 2); k != "rt_p1_w3_d2" {
		t.Errorf("key = %q", k)
	}
	if k := DateKey("", 1, 1); k != "rt_none_w1_d1" {
		t.Errorf("key = %q", k)
	}
}
