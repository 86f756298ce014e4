package calls

import (
	"sync/atomic"
	"testing"

	"levlyfy/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_DeliversInOrder(t *testing.T) {
	var got []SessionState
	d := newDispatcher([]Observer{ObserverFunc(func(tr Transition) { got = append(got, tr.To) })}, logger.Discard(), nil)

	for _, s := range []SessionState{StateInitializing, StateReady, StatePlacing, StateRinging} {
		d.publish(Transition{To: s})
	}
	d.close()

	assert.Equal(t, []SessionState{StateInitializing, StateReady, StatePlacing, StateRinging}, got)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var delivered, dropped atomic.Int32
	slow := ObserverFunc(func(Transition) {
		<-release
		delivered.Add(1)
	})
	d := newDispatcher([]Observer{slow}, logger.Discard(), func() { dropped.Add(1) })

	total := dispatchBuffer + 50
	for i := 0; i < total; i++ {
		d.publish(Transition{To: StateConnected, Tick: true})
	}
	close(release)
	d.close()

	assert.Positive(t, dropped.Load())
	assert.Equal(t, int32(total), delivered.Load()+dropped.Load())
}

func TestDispatcher_RecoversObserverPanic(t *testing.T) {
	var after atomic.Int32
	d := newDispatcher([]Observer{
		ObserverFunc(func(Transition) { panic("boom") }),
		ObserverFunc(func(Transition) { after.Add(1) }),
	}, logger.Discard(), nil)

	d.publish(Transition{To: StateReady})
	d.publish(Transition{To: StateIdle})
	d.close()

	assert.Equal(t, int32(2), after.Load())
	// Publishing after close is ignored.
	d.publish(Transition{To: StateReady})
}
