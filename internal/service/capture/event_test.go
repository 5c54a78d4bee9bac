package capture

import "testing"

func TestParseFaultKind(t *testing.T) {
	tests := []struct {
		code string
		want FaultKind
	}{
		{"not-allowed", FaultPermissionDenied},
		{"aborted", FaultAborted},
		{"no-speech", FaultNoSpeech},
		{"network", FaultNetwork},
		{"audio-capture", FaultOther},
		{"", FaultOther},
	}

	for _, tt := range tests {
		if got := ParseFaultKind(tt.code); got != tt.want {
			t.Errorf("ParseFaultKind(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateListening, "LISTENING"},
		{StateFaultedRetrying, "FAULTED_RETRYING"},
		{State(42), "UNKNOWN(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestClassify_AbortedDependsOnIntent(t *testing.T) {
	if c := classify(FaultAborted, true); c.class != ClassRecoverableSilent || c.message != "" {
		t.Errorf("expected silent class for intentional abort, got %+v", c)
	}
	if c := classify(FaultAborted, false); c.class != ClassRecoverableNotified {
		t.Errorf("expected notified class for unexpected abort, got %+v", c)
	}
}

func TestFaultEvent(t *testing.T) {
	ev := FaultEvent("network")
	if ev.Type != EventFault {
		t.Errorf("expected FAULT, got %v", ev.Type)
	}
	if ev.Fault.Kind != FaultNetwork || ev.Fault.Code != "network" {
		t.Errorf("unexpected fault: %+v", ev.Fault)
	}
}
