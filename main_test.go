package main

import (
	"testing"
	"time"

	"github.com/photosphere/tree-diff-go/lib"
	"github.com/spf13/cobra"
)

func TestRequireZeroOrTwoArgs(t *testing.T) {
	cmd := &cobra.Command{}
	if err := requireZeroOrTwoArgs(cmd, nil); err != nil {
		t.Errorf("requireZeroOrTwoArgs(nil) = %v", err)
	}
	if err := requireZeroOrTwoArgs(cmd, []string{"a", "b"}); err != nil {
		t.Errorf("requireZeroOrTwoArgs([a,b]) = %v", err)
	}
	if err := requireZeroOrTwoArgs(cmd, []string{"only"}); err == nil {
		t.Error("requireZeroOrTwoArgs([one]) want error")
	}
	if err := requireZeroOrTwoArgs(cmd, []string{"a", "b", "c"}); err == nil {
		t.Error("requireZeroOrTwoArgs([a,b,c]) want error")
	}
}

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name        string
		interrupted bool
		nonFatal    int
		summary     lib.Summary
		want        int
	}{
		{"clean", false, 0, lib.Summary{Identical: 3}, ExitNoDifferences},
		{"differences", false, 0, lib.Summary{OnlyLeft: 1}, ExitDifferences},
		{"errors beat differences", false, 2, lib.Summary{OnlyLeft: 1}, ExitNonFatal},
		{"unreadable counts as error", false, 0, lib.Summary{Inaccessible: 1}, ExitNonFatal},
		{"interrupted beats everything", true, 2, lib.Summary{OnlyLeft: 1}, ExitFatal},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.interrupted, c.nonFatal, c.summary); got != c.want {
			t.Errorf("%s: exitCodeFor = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestEstimateRemainingFromElapsed(t *testing.T) {
	elapsed := 10 * time.Second
	// 10 processed in 10s => 1s per task; 5 pending => 5s remaining
	got := estimateRemainingFromElapsed(elapsed, 10, 5)
	if got != 5*time.Second {
		t.Errorf("estimateRemainingFromElapsed(10s, 10, 5) = %v, want 5s", got)
	}
	// processed 0 => no estimate
	got = estimateRemainingFromElapsed(elapsed, 0, 5)
	if got != 0 {
		t.Errorf("estimateRemainingFromElapsed(10s, 0, 5) = %v, want 0", got)
	}
	// pending 0 => 0 remaining
	got = estimateRemainingFromElapsed(elapsed, 10, 0)
	if got != 0 {
		t.Errorf("estimateRemainingFromElapsed(10s, 10, 0) = %v, want 0", got)
	}
}
