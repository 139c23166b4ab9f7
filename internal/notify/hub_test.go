package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/logware/soar/pkg/clock"
)

func TestCenterPublishFillsDefaults(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	c := NewCenter(8, clock.NewMock(start))

	n := c.Publish(Notice{Severity: SeverityInfo, Source: "relay", Title: "delivered"})
	if n.ID == "" {
		t.Error("Publish() should assign an ID")
	}
	if !n.Time.Equal(start) {
		t.Errorf("Time = %v, want %v", n.Time, start)
	}
}

func TestCenterRecentNewestFirst(t *testing.T) {
	c := NewCenter(8, nil)
	for i := 0; i < 3; i++ {
		c.Publish(Notice{Severity: SeverityInfo, Source: "test", Title: fmt.Sprintf("n%d", i)})
	}

	got := c.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len(Recent()) = %d, want 3", len(got))
	}
	for i, want := range []string{"n2", "n1", "n0"} {
		if got[i].Title != want {
			t.Errorf("Recent()[%d].Title = %q, want %q", i, got[i].Title, want)
		}
	}

	limited := c.Recent(2)
	if len(limited) != 2 || limited[0].Title != "n2" {
		t.Errorf("Recent(2) = %+v", limited)
	}
}

func TestCenterRingEvictsOldest(t *testing.T) {
	c := NewCenter(3, nil)
	for i := 0; i < 5; i++ {
		c.Publish(Notice{Severity: SeverityWarning, Source: "test", Title: fmt.Sprintf("n%d", i)})
	}

	got := c.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len(Recent()) = %d, want 3", len(got))
	}
	for i, want := range []string{"n4", "n3", "n2"} {
		if got[i].Title != want {
			t.Errorf("Recent()[%d].Title = %q, want %q", i, got[i].Title, want)
		}
	}
}

func TestCenterSubscribe(t *testing.T) {
	c := NewCenter(8, nil)
	ch, cancel := c.Subscribe()

	c.Errorf("relay", "delivery failed", "connection refused")

	select {
	case n := <-ch:
		if n.Severity != SeverityError || n.Source != "relay" {
			t.Errorf("received %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive notice")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic or block.
	c.Infof("test", "after cancel", "")
}

func TestCenterSlowSubscriberDoesNotBlock(t *testing.T) {
	c := NewCenter(64, nil)
	ch, cancel := c.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the subscriber buffer without draining it.
		for i := 0; i < 40; i++ {
			c.Publish(Notice{Severity: SeverityInfo, Source: "flood", Title: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if len(ch) != cap(ch) {
		t.Errorf("subscriber buffer should be full, len = %d cap = %d", len(ch), cap(ch))
	}
	if got := c.Recent(0); len(got) != 40 {
		t.Errorf("Recent() retained %d notices, want 40", len(got))
	}
}
