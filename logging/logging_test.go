package logging

import "testing"

func TestNewAttachesComponentField(t *testing.T) {
	l := New("dispatch")
	if l == nil {
		t.Fatal("New returned a nil logger")
	}
	// Logger is an interface; the real assertion is that With-derived
	// loggers below don't panic and still satisfy the interface.
	_ = WithProposal(l, 7)
	_ = WithProofFile(l, "abc123.prf")
}

func TestWithProposalAndProofFileChain(t *testing.T) {
	l := New("syncagent")
	l = WithProposal(l, 42)
	l = WithProofFile(l, "deadbeef.prf")
	l.Info("test message")
}
