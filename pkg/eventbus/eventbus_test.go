package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type created struct {
	name string
}

type deleted struct{}

func newTestBus() (EventBus, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.WarnLevel)
	return NewEventPublisher(log), buf
}

func TestPublisher_DeliversToMatchingSubscriber(t *testing.T) {
	bus, _ := newTestBus()

	var got string
	bus.Subscribe(func(e *created) {
		got = e.name
	})
	bus.Subscribe(func(e *deleted) {
		t.Error("deleted handler should not fire for created events")
	})

	bus.Publish(&created{name: "engineering"})

	if got != "engineering" {
		t.Errorf("expected handler to receive event, got %q", got)
	}
}

func TestPublisher_LogsWhenNoSubscriberMatches(t *testing.T) {
	bus, buf := newTestBus()
	bus.Subscribe(func(e *deleted) {})

	bus.Publish(&created{name: "x"})

	if out := buf.String(); !strings.Contains(out, "no matching subscribers") {
		t.Errorf("expected no-subscribers warning, got: %q", out)
	}
}

func TestPublisher_RecoversFromHandlerPanic(t *testing.T) {
	bus, buf := newTestBus()
	bus.Subscribe(func(e *created) {
		panic("boom")
	})

	bus.Publish(&created{name: "x"})

	if out := buf.String(); !strings.Contains(out, "panicked") {
		t.Errorf("expected panic to be logged, got: %q", out)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	bus, _ := newTestBus()
	handler := func(e *created) {
		t.Error("unsubscribed handler fired")
	}
	bus.Subscribe(handler)
	if bus.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscribersCount())
	}
	bus.Unsubscribe(handler)
	if bus.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", bus.SubscribersCount())
	}
	bus.Publish(&created{name: "x"})
}
