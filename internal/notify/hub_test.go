package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calmirror/calmirror/internal/gsync"
)

func TestHubPublishFansOut(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe()
	defer cancelA()
	b, cancelB := h.Subscribe()
	defer cancelB()

	changes := []gsync.Change{{Title: "standup", Category: gsync.CategorySeries, Operation: gsync.OpSeriesCreated}}
	h.Publish(changes)

	for _, ch := range []<-chan []gsync.Change{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, changes, got)
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the batch")
		}
	}
}

func TestHubCancelledSubscriberStopsReceiving(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	cancel()

	h.Publish([]gsync.Change{{Title: "x", Category: gsync.CategorySingle, Operation: gsync.OpEventUpserted}})
	select {
	case got := <-ch:
		t.Fatalf("received %v after cancel", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubEmptyBatchIsNotPublished(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(nil)
	select {
	case <-ch:
		t.Fatal("empty batch delivered")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish([]gsync.Change{{Title: "flood", Category: gsync.CategorySingle, Operation: gsync.OpEventUpserted}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
