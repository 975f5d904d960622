package events

import (
	"testing"
	"time"
)

func TestSink_PublishDeliversToEverySubscriber(t *testing.T) {
	s := NewSink()
	defer s.Close()

	chA, unsubA := s.Subscribe(4)
	defer unsubA()
	chB, unsubB := s.Subscribe(4)
	defer unsubB()

	s.Publish(WorkflowStarted("ci"))

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case ev := <-ch:
			if ev.Kind != KindWorkflowStarted {
				t.Errorf("got kind %q, want %q", ev.Kind, KindWorkflowStarted)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSink_PublishBlocksOnceTheBoundedBufferFills(t *testing.T) {
	s := NewSink()
	defer s.Close()

	// A one-slot subscriber that never drains stalls dispatch on its
	// second delivery: one event sits in the subscriber's channel, one
	// is held by dispatch, and sinkCapacity more fill the primary
	// events channel, so publish number sinkCapacity+3 is the first
	// that cannot complete.
	ch, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < sinkCapacity+3; i++ {
			s.Publish(NewLogLine("build", "", 0, "stdout", "line"))
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Publish did not block once the bounded buffer filled")
	case <-time.After(100 * time.Millisecond):
	}

	<-ch // drain one event, letting dispatch and the blocked Publish advance

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish never unblocked after the subscriber drained")
	}
}

func TestSink_UnsubscribeClosesChannel(t *testing.T) {
	s := NewSink()
	defer s.Close()

	ch, unsubscribe := s.Subscribe(1)
	unsubscribe()

	select {
	case _, open := <-ch:
		if open {
			t.Error("expected the channel to be closed after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestSink_SubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	s := NewSink()
	s.Close()

	ch, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	select {
	case _, open := <-ch:
		if open {
			t.Error("expected a closed channel from Subscribe after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
