package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleFires(t *testing.T) {
	done := make(chan struct{})
	tm := Schedule(10*time.Millisecond, func() { close(done) })
	require.NotEmpty(t, tm.ID)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	require.True(t, tm.Fired())
}

func TestStopBeforeFire(t *testing.T) {
	fired := make(chan struct{})
	tm := Schedule(100*time.Millisecond, func() { close(fired) })
	require.True(t, tm.Stop())

	select {
	case <-fired:
		t.Fatal("timer fired after Stop")
	case <-time.After(200 * time.Millisecond):
	}
	require.False(t, tm.Fired())
}

func TestStopAfterFireReturnsFalse(t *testing.T) {
	done := make(chan struct{})
	tm := Schedule(5*time.Millisecond, func() { close(done) })
	<-done
	time.Sleep(5 * time.Millisecond)
	require.False(t, tm.Stop())
}
