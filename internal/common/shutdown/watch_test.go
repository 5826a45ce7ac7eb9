package shutdown

import (
	"testing"
	"time"
)

func TestWatchFireIdempotent(t *testing.T) {
	w := New()
	if w.Fired() {
		t.Fatal("expected watch to start unfired")
	}

	w.Fire()
	w.Fire() // must not panic on double-close

	if !w.Fired() {
		t.Fatal("expected watch to be fired")
	}
}

func TestWatchDoneUnblocksSelect(t *testing.T) {
	w := New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.Fire()
	}()

	select {
	case <-w.Done():
		// expected
	case <-time.After(time.Second):
		t.Fatal("Done channel never closed")
	}
}
