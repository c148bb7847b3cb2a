package types

import "testing"

func TestPhaseStringRoundTrips(t *testing.T) {
	cases := map[Phase]string{
		PhasePropose:   "propose",
		PhasePrevote:   "prevote",
		PhasePrecommit: "precommit",
		PhaseCommit:    "commit",
		Phase(0):       "unknown",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", uint8(phase), got, want)
		}
	}
}
