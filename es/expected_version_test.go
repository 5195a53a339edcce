package es

import "testing"

func TestExpectedVersion_Any(t *testing.T) {
	ev := Any()

	if !ev.IsAny() {
		t.Error("Any() should be IsAny")
	}
	if ev.IsNoStream() {
		t.Error("Any() should not be IsNoStream")
	}
	if ev.IsExact() {
		t.Error("Any() should not be IsExact")
	}
	if ev.Value() != 0 {
		t.Errorf("Any().Value() should be 0, got %d", ev.Value())
	}
	if ev.String() != "Any" {
		t.Errorf("Any().String() should be 'Any', got %q", ev.String())
	}
}

func TestExpectedVersion_NoStream(t *testing.T) {
	ev := NoStream()

	if !ev.IsNoStream() {
		t.Error("NoStream() should be IsNoStream")
	}
	if ev.IsAny() {
		t.Error("NoStream() should not be IsAny")
	}
	if ev.IsExact() {
		t.Error("NoStream() should not be IsExact")
	}
	if ev.String() != "NoStream" {
		t.Errorf("NoStream().String() should be 'NoStream', got %q", ev.String())
	}
}

func TestExpectedVersion_Exact(t *testing.T) {
	ev := Exact(42)

	if !ev.IsExact() {
		t.Error("Exact(42) should be IsExact")
	}
	if ev.IsAny() || ev.IsNoStream() {
		t.Error("Exact(42) should be neither IsAny nor IsNoStream")
	}
	if ev.Value() != 42 {
		t.Errorf("Exact(42).Value() should be 42, got %d", ev.Value())
	}
	if ev.String() != "Exact(42)" {
		t.Errorf("Exact(42).String() should be 'Exact(42)', got %q", ev.String())
	}
}

func TestExpectedVersion_ExactZero(t *testing.T) {
	ev := Exact(0)

	if !ev.IsExact() {
		t.Error("Exact(0) should be IsExact")
	}
	if ev.Value() != 0 {
		t.Errorf("Exact(0).Value() should be 0, got %d", ev.Value())
	}
}

func TestExpectedVersion_ExactNegativePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Exact(-1) should panic")
		}
	}()
	Exact(-1)
}
