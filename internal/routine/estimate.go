package routine

import (
	"math"
	"regexp"
	"strconv"
)

var (
	maxRepRe       = regexp.MustCompile(`(?i)(\d+)\s*to\s*(\d+)`)
	abRipperRe     = regexp.MustCompile(`(?i)ab ripper x`)
	longSessionRe  = regexp.MustCompile(`(?i)long session`)
	recoveryRe     = regexp.MustCompile(`(?i)recovery`)
	mobilityRe     = regexp.MustCompile(`(?i)mobility`)
	reverseHyperRe = regexp.MustCompile(`(?i)reverse hyper`)
	lightRe        = regexp.MustCompile(`(?i)light`)
)

// ParseMaxRep extracts the upper bound from a "<min> to <max>" target.
func ParseMaxRep(target string) (int, bool) {
	m := maxRepRe.FindStringSubmatch(target)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return n, true
}

// EstimateMinutes heuristically estimates a row's duration in minutes.
// A user-supplied est override wins; a few named exercises have fixed or
// per-set times; everything else gets 4 seconds per max target rep plus
// 1.5 minutes rest between sets and 3 minutes setup/transition.
func EstimateMinutes(r Row) float64 {
	if r.Est > 0 {
		return math.Max(1, r.Est)
	}

	if abRipperRe.MatchString(r.Exercise) {
		return 16
	}
	if routineExerciseRe.MatchString(r.Exercise) {
		switch {
		case longSessionRe.MatchString(r.Focus):
			return 40
		case recoveryRe.MatchString(r.Exercise):
			return 18
		case mobilityRe.MatchString(r.Exercise):
			return 12
		default:
			return 15
		}
	}
	if reverseHyperRe.MatchString(r.Exercise) {
		if lightRe.MatchString(r.Exercise) {
			return float64(r.Sets) * 1.3
		}
		return float64(r.Sets) * 1.6
	}

	sets := r.Sets
	if sets == 0 {
		sets = 1
	}
	maxRep, ok := ParseMaxRep(r.Target)
	if !ok {
		return math.Max(1, float64(sets)*2+3)
	}

	work := float64(maxRep) * 4 / 60 * float64(sets)
	rest := 1.5 * float64(sets-1)
	const transition = 3
	total := work + rest + transition
	return math.Max(1, math.Round(total*10)/10)
}

// EstimateDayMinutes sums the per-row estimates for a day.
func EstimateDayMinutes(rows []Row) float64 {
	var total float64
	for _, r := range rows {
		total += EstimateMinutes(r)
	}
	return total
}
