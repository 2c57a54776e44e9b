package core

import "testing"

func TestCorrelationMap_RegisterResolve(t *testing.T) {
	m := NewCorrelationMap()
	var fp [32]byte
	fp[0] = 1

	waiter := m.Register(fp)
	if !m.Resolve(fp, true, nil) {
		t.Fatalf("Resolve should find the registered waiter")
	}

	select {
	case result := <-waiter:
		if result.err != nil || result.value != true {
			t.Fatalf("unexpected result: %+v", result)
		}
	default:
		t.Fatalf("waiter channel should have a buffered result")
	}
}

func TestCorrelationMap_ResolveUnknownIsNoop(t *testing.T) {
	m := NewCorrelationMap()
	var fp [32]byte
	fp[0] = 2
	if m.Resolve(fp, true, nil) {
		t.Fatalf("Resolve should report false for an unregistered fingerprint")
	}
}

func TestCorrelationMap_SecondRegisterOverwritesFirst(t *testing.T) {
	m := NewCorrelationMap()
	var fp [32]byte
	fp[0] = 3

	first := m.Register(fp)
	second := m.Register(fp)

	if !m.Resolve(fp, "done", nil) {
		t.Fatalf("Resolve should find the (second) waiter")
	}

	select {
	case <-first:
		t.Fatalf("the first waiter should never be signaled once overwritten")
	default:
	}

	select {
	case result := <-second:
		if result.value != "done" {
			t.Fatalf("second waiter got unexpected result: %+v", result)
		}
	default:
		t.Fatalf("second waiter should have received the result")
	}
}
