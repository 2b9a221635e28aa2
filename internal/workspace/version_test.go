package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionWatch_BumpAdvancesAndNotifies(t *testing.T) {
	w := NewVersionWatch()
	assert.Equal(t, uint64(0), w.Current())

	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	v := w.Bump()
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, uint64(1), w.Current())
	assert.Equal(t, uint64(1), <-sub)
}

func TestVersionWatch_CoalescesMultipleAdvances(t *testing.T) {
	w := NewVersionWatch()
	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	w.Bump()
	w.Bump()
	v := w.Bump()

	// the subscriber's buffer only ever holds the latest value, never a
	// backlog of every intermediate bump.
	assert.Equal(t, v, <-sub)
	select {
	case <-sub:
		t.Fatal("expected no further buffered values")
	default:
	}
}

func TestVersionWatch_UnsubscribeStopsDelivery(t *testing.T) {
	w := NewVersionWatch()
	sub := w.Subscribe()
	w.Unsubscribe(sub)

	w.Bump()
	select {
	case <-sub:
		t.Fatal("unsubscribed channel should not receive further values")
	default:
	}
}
