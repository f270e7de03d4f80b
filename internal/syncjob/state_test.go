package syncjob

import "testing"

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{Idle, ResolvingURL, true},
		{ResolvingURL, Authenticating, true},
		{Authenticating, Downloading, true},
		{Downloading, Parsing, true},
		{Parsing, Completed, true},
		{Idle, Failed, true},
		{Parsing, Failed, true},
		{Idle, Downloading, false},
		{Parsing, ResolvingURL, false},
		{Completed, Failed, false},
		{Failed, Idle, false},
		{Failed, ResolvingURL, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := isAllowedTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("isAllowedTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for s := Idle; s <= Failed; s++ {
		want := s == Completed || s == Failed
		if IsTerminal(s) != want {
			t.Errorf("IsTerminal(%s) = %v", s, !want)
		}
	}
}
