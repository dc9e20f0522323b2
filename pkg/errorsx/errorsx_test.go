package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonLLMGenerate, Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonToolExecution)
	second := Wrap(first, ReasonLLMGenerate)
	if Reason(second) != ReasonToolExecution {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonStoreQuery) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestErrorTextOmitsReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonStoreQuery)
	if err.Error() != "boom" {
		t.Fatalf("expected inner message only, got %q", err.Error())
	}
}

func TestReasonUnwrapped(t *testing.T) {
	if Reason(assertErr{}) != ReasonUnknown {
		t.Fatalf("expected unknown reason for a plain error")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
