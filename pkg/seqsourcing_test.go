package seqsourcing

import "testing"

func TestVersion(t *testing.T) {
	if Version() == "" {
		t.Error("Version() should not be empty")
	}
}
