package routine

import "fmt"

// Storage keys for progress records come in three schemes. The canonical form
// is derived from the row's stable id; the two legacy forms survive only so
// that records written by older versions can be migrated on first touch.
const (
	StrategyCanonical = "canonical" // rt_<routine>_id_<rowId>
	StrategyOrdinal   = "ordinal"   // rt_<routine>_w<w>_d<d>_o<ord>_<slug>  (breaks on reorder)
	StrategyName      = "name"      // rt_<routine>_w<w>_d<d>_<slug>         (breaks on same-day duplicates)
)

// KeyPrefix namespaces all row keys under their routine.
func KeyPrefix(routineID string) string {
	if routineID == "" {
		return "rt_none"
	}
	return "rt_" + routineID
}

// KeyCandidate is one derivable storage key for a row, tagged with the
// strategy that produced it.
type KeyCandidate struct {
	Strategy string
	Key      string
}

// CanonicalKey returns the id-based key. ok is false while the row has no id.
func CanonicalKey(routineID string, r Row) (string, bool) {
	if r.RowID == "" {
		return "", false
	}
	return fmt.Sprintf("%s_id_%s", KeyPrefix(routineID), r.RowID), true
}

// OrdinalKey returns the legacy position-based key. fallbackOrd is the row's
// index among same-day rows, used when the row carries no explicit ordinal.
func OrdinalKey(routineID string, r Row, fallbackOrd int) string {
	ord := fallbackOrd
	if r.Ord != nil {
		ord = *r.Ord
	}
	if ord < 0 {
		ord = 0
	}
	return fmt.Sprintf("%s_w%d_d%d_o%d_%s", KeyPrefix(routineID), r.Week, r.Day, ord, Slug(r.Exercise))
}

// NameKey returns the oldest key form, derived from placement and name only.
func NameKey(routineID string, r Row) string {
	return fmt.Sprintf("%s_w%d_d%d_%s", KeyPrefix(routineID), r.Week, r.Day, Slug(r.Exercise))
}

// RowKey returns the preferred write key for a row: canonical when the row has
// an id, ordinal otherwise.
func RowKey(routineID string, r Row, fallbackOrd int) string {
	if k, ok := CanonicalKey(routineID, r); ok {
		return k
	}
	return OrdinalKey(routineID, r, fallbackOrd)
}

// KeyCandidates lists the row's storage keys newest scheme first. Lookups take
// the first hit; migration moves a legacy hit to the canonical key.
func KeyCandidates(routineID string, r Row, fallbackOrd int) []KeyCandidate {
	var out []KeyCandidate
	if k, ok := CanonicalKey(routineID, r); ok {
		out = append(out, KeyCandidate{StrategyCanonical, k})
	}
	out = append(out,
		KeyCandidate{StrategyOrdinal, OrdinalKey(routineID, r, fallbackOrd)},
		KeyCandidate{StrategyName, NameKey(routineID, r)},
	)
	return out
}

// DateKey identifies the user-entered date stamp for a routine day.
func DateKey(routineID string, week, day int) string {
	return fmt.Sprintf("%s_w%d_d%d", KeyPrefix(routineID), week, day)
}
