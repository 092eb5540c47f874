package hub

import "testing"

type testWriter struct {
	writes int
	events []string
	fail   bool
}

func (w *testWriter) WriteEvent(event string, data []byte) error {
	w.writes++
	w.events = append(w.events, event)
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error { return nil }

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test" }

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	c1 := NewConnection("u", w1)

	h.Register(c1)
	if n := h.Broadcast("u", "message", []byte("x")); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if w1.writes != 1 || w1.events[0] != "message" {
		t.Fatalf("unexpected writes: %d %v", w1.writes, w1.events)
	}

	h.Unregister(c1)
	h.Unregister(c1) // idempotent
	if n := h.Broadcast("u", "message", []byte("x")); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
	if w1.writes != 1 {
		t.Fatalf("expected no more writes, got %d", w1.writes)
	}
}

func TestHub_MultiDeviceExcept(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	w2 := &testWriter{}
	c1 := NewConnection("u", w1)
	c2 := NewConnection("u", w2)
	h.Register(c1)
	h.Register(c2)

	if n := h.BroadcastExcept("u", c1, "message", []byte("x")); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if w1.writes != 0 {
		t.Fatalf("originating session must not be echoed, got %d writes", w1.writes)
	}
	if w2.writes != 1 {
		t.Fatalf("expected other device to receive, got %d", w2.writes)
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New()
	w1 := &testWriter{fail: true}
	c1 := NewConnection("u", w1)
	h.Register(c1)

	h.Broadcast("u", "message", []byte("x"))
	h.Broadcast("u", "message", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", w1.writes)
	}
	if len(h.Sessions("u")) != 0 {
		t.Fatalf("expected failed connection to be dropped")
	}
}
