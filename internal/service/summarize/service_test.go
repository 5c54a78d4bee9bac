package summarize

import "testing"

type recordingNotifier struct {
	source     string
	inputChars int
	summary    string
	calls      int
}

func (n *recordingNotifier) Summarized(source string, inputChars int, summary string) {
	n.source = source
	n.inputChars = inputChars
	n.summary = summary
	n.calls++
}

func TestService_NotifiesOnSummary(t *testing.T) {
	n := &recordingNotifier{}
	svc := NewService(n)

	text := "Cats are wonderful pets. Dogs are loyal companions."
	got := svc.Summarize("http", text)

	if got != text {
		t.Errorf("expected short document returned as-is, got %q", got)
	}
	if n.calls != 1 {
		t.Fatalf("expected 1 notification, got %d", n.calls)
	}
	if n.source != "http" || n.summary != got || n.inputChars != len(text) {
		t.Errorf("unexpected notification: %+v", n)
	}
}

func TestService_NoNotificationForEmptyInput(t *testing.T) {
	n := &recordingNotifier{}
	svc := NewService(n)

	if got := svc.Summarize("grpc", "   "); got != NothingToSummarize {
		t.Errorf("expected %q, got %q", NothingToSummarize, got)
	}
	if n.calls != 0 {
		t.Errorf("expected no notification, got %d", n.calls)
	}
}

func TestService_NilNotifier(t *testing.T) {
	svc := NewService(nil)
	if got := svc.Summarize("cli", ""); got != NothingToSummarize {
		t.Errorf("expected %q, got %q", NothingToSummarize, got)
	}
}
