package events

import (
	"sync"
	"testing"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe("greeting", func(p any) { got = append(got, "first:"+p.(string)) })
	bus.Subscribe("greeting", func(p any) { got = append(got, "second:"+p.(string)) })

	bus.Publish("greeting", "bonjour")

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "first:bonjour" || got[1] != "second:bonjour" {
		t.Errorf("unexpected deliveries: %v", got)
	}
}

func TestBus_PublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus()
	// Must not panic.
	bus.Publish("nobody-home", 42)
}

func TestBus_TopicsAreIndependent(t *testing.T) {
	bus := NewBus()

	var consentSeen, notifSeen int
	bus.Subscribe(TopicConsentUpdate, func(any) { consentSeen++ })
	bus.Subscribe(TopicNotification, func(any) { notifSeen++ })

	bus.NotifyError("oops")
	bus.NotifySuccess("ok")

	if consentSeen != 0 {
		t.Errorf("consent subscriber received %d notification events", consentSeen)
	}
	if notifSeen != 2 {
		t.Errorf("expected 2 notifications, got %d", notifSeen)
	}
}

func TestBus_NotificationPayload(t *testing.T) {
	bus := NewBus()

	var last Notification
	bus.Subscribe(TopicNotification, func(p any) { last = p.(Notification) })

	bus.NotifyError("Champs requis manquants")
	if last.Level != "error" || last.Message != "Champs requis manquants" {
		t.Errorf("unexpected payload: %+v", last)
	}

	bus.NotifySuccess("Votre demande de devis a bien été envoyée !")
	if last.Level != "success" {
		t.Errorf("unexpected payload: %+v", last)
	}
}

func TestBus_ConcurrentUse(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("tick", func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish("tick", nil)
		}()
	}
	wg.Wait()

	if count != 20 {
		t.Errorf("expected 20 deliveries, got %d", count)
	}
}
