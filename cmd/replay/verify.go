package main

import (
	"fmt"
	"sort"

	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/dice"
)

// report accumulates what the audit trail says happened.
type report struct {
	Records    int
	Rounds     map[action.Kind]int
	Falsified  int
	Diverted   map[string]int
	Violations []string
}

func newReport() *report {
	return &report{Rounds: map[action.Kind]int{}, Diverted: map[string]int{}}
}

// check re-derives both outcomes of one roll from its recorded faces and
// thresholds and flags anything the engine should never have produced.
func (rep *report) check(r action.Record) {
	rep.Records++
	rep.Rounds[r.Kind]++
	bad := func(format string, args ...any) {
		rep.Violations = append(rep.Violations, fmt.Sprintf("%s round %d: ", r.ActionID, r.Round)+fmt.Sprintf(format, args...))
	}

	if len(r.Raws) > 0 {
		best := r.Raws[0]
		for _, raw := range r.Raws[1:] {
			best = max(best, raw)
		}
		if want := dice.Classify(best, r.Thresholds); want != r.True {
			bad("true outcome %+v, faces %v classify as %+v", r.True, r.Raws, want)
		}
	}
	for _, o := range []dice.Outcome{r.True, r.Reported} {
		if o.CritSuccess && !o.Success {
			bad("critical success without success")
		}
		if o.Success && o.CritFailure {
			bad("success and critical failure at once")
		}
	}

	// A falsified report is always a plain failure below the true face. It is
	// not reclassified: the face may sit in the critical range.
	if r.Reported != r.True {
		rep.Falsified++
		switch {
		case r.Diverted <= 0:
			bad("report differs from the roll but nothing was diverted")
		case r.MinisterID == "":
			bad("diversion without a minister")
		case !r.True.Success:
			bad("a true failure was falsified")
		case r.Reported.Success || r.Reported.CritFailure:
			bad("falsified report %q is not a plain failure", r.Reported.Label())
		case r.Reported.Raw > r.True.Raw:
			bad("report %d is better than the roll %d", r.Reported.Raw, r.True.Raw)
		}
	} else if r.Diverted > 0 {
		bad("diverted %d without a falsified report", r.Diverted)
	}
	if r.Diverted > 0 && r.MinisterID != "" {
		rep.Diverted[r.MinisterID] += r.Diverted
	}
}

// compare lists ministers whose totals disagree between two sources.
func compare(a, b map[string]int) []string {
	ids := map[string]struct{}{}
	for id := range a {
		ids[id] = struct{}{}
	}
	for id := range b {
		ids[id] = struct{}{}
	}
	var out []string
	for id := range ids {
		if a[id] != b[id] {
			out = append(out, fmt.Sprintf("%s: %d vs %d", id, a[id], b[id]))
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
