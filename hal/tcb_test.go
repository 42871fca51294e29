package hal

import (
	"errors"
	"testing"
)

func TestTCBSwitchRoundTrip(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)
	defer m.Halt()

	main := m.AdoptTCB()
	other := m.NewTCB()

	var trace []string
	other.Start(func() {
		trace = append(trace, "other")
		if m.CurrentTCB() != other {
			t.Error("CurrentTCB() is not the started context")
		}
		main.ContextSwitch()
		trace = append(trace, "resumed after destroy")
	})

	trace = append(trace, "main")
	other.ContextSwitch()
	trace = append(trace, "back")
	other.Destroy()

	want := []string{"main", "other", "back"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
	if got := m.ContextSwitches(); got != 2 {
		t.Fatalf("ContextSwitches() = %d, want 2", got)
	}
}

func TestTCBSwitchToSelfIsNoop(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)
	main := m.AdoptTCB()

	main.ContextSwitch()
	if m.CurrentTCB() != main {
		t.Fatal("CurrentTCB() changed on self switch")
	}
}

func TestTCBDestroyRunningFaults(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)
	main := m.AdoptTCB()

	defer func() {
		var f *Fault
		err, _ := recover().(error)
		if !errors.As(err, &f) || f.Op != "destroy" {
			t.Fatalf("recover() = %v, want destroy fault", err)
		}
	}()
	main.Destroy()
}

func TestMachineHaltReleasesParkedContexts(t *testing.T) {
	m := NewMachine(DefaultConfig(), nil)
	m.AdoptTCB()

	started := m.NewTCB()
	started.Start(func() {
		t.Error("parked context ran after halt")
	})

	m.Halt()
	m.Halt()
	if !m.Halted() {
		t.Fatal("Halted() = false after Halt")
	}
}
