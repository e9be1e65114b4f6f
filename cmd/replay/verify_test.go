package main

import (
	"strings"
	"testing"

	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/dice"
)

var th = dice.Thresholds{SuccessMin: 4, CritSuccessMin: 6, CritFailMax: 1, AllowCritFail: true}

func rec(id string, raws []int, reported dice.Outcome, diverted int, minister string) action.Record {
	best := raws[0]
	for _, r := range raws {
		best = max(best, r)
	}
	return action.Record{
		ActionID:   id,
		Kind:       action.KindAdvertise,
		Round:      1,
		Thresholds: th,
		Raws:       raws,
		True:       dice.Classify(best, th),
		Reported:   reported,
		Diverted:   diverted,
		MinisterID: minister,
	}
}

func TestReport_CleanTrail(t *testing.T) {
	rep := newReport()
	rep.check(rec("a1", []int{6}, dice.Classify(6, th), 0, "M1"))
	rep.check(rec("a2", []int{2, 5}, dice.Classify(5, th), 0, "M1"))
	rep.check(rec("a3", []int{5}, dice.Outcome{Raw: 3}, 30, "M2"))
	rep.check(rec("a4", []int{6}, dice.Outcome{Raw: 3}, 12, "M2"))

	if len(rep.Violations) != 0 {
		t.Fatalf("violations: %v", rep.Violations)
	}
	if rep.Records != 4 || rep.Falsified != 2 || rep.Rounds[action.KindAdvertise] != 4 {
		t.Fatalf("report=%+v", rep)
	}
	if rep.Diverted["M2"] != 42 || rep.Diverted["M1"] != 0 {
		t.Fatalf("diverted=%v", rep.Diverted)
	}
}

func TestReport_FlagsTampering(t *testing.T) {
	cases := []struct {
		name string
		r    action.Record
		want string
	}{
		{"wrong true outcome", func() action.Record {
			r := rec("b1", []int{5}, dice.Classify(5, th), 0, "")
			r.True = dice.Classify(2, th)
			r.Reported = r.True
			return r
		}(), "classify as"},
		{"silent falsification", rec("b2", []int{5}, dice.Outcome{Raw: 3}, 0, "M1"), "nothing was diverted"},
		{"no minister", rec("b3", []int{5}, dice.Outcome{Raw: 3}, 10, ""), "without a minister"},
		{"fatal lie", rec("b4", []int{5}, dice.Outcome{Raw: 1, CritFailure: true}, 10, "M1"), "not a plain failure"},
		{"falsified failure", rec("b5", []int{2}, dice.Outcome{Raw: 1}, 10, "M1"), "true failure"},
		{"unexplained diversion", rec("b6", []int{5}, dice.Classify(5, th), 10, "M1"), "without a falsified report"},
		{"crit without success", func() action.Record {
			r := rec("b7", []int{3}, dice.Classify(3, th), 0, "")
			r.True.CritSuccess = true
			r.Reported = r.True
			return r
		}(), "critical success without success"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := newReport()
			rep.check(tc.r)
			if len(rep.Violations) == 0 {
				t.Fatalf("no violation")
			}
			joined := strings.Join(rep.Violations, "\n")
			if !strings.Contains(joined, tc.want) {
				t.Fatalf("violations %q do not mention %q", joined, tc.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	got := compare(map[string]int{"M1": 5, "M2": 30}, map[string]int{"M2": 31, "M3": 1})
	want := []string{"M1: 5 vs 0", "M2: 30 vs 31", "M3: 0 vs 1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("compare=%v", got)
	}
	if len(compare(map[string]int{"M1": 5}, map[string]int{"M1": 5})) != 0 {
		t.Fatalf("equal totals should not mismatch")
	}
}
