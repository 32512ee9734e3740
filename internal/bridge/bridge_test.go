package bridge

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"
	"vehicle-remote/internal/state"
	"vehicle-remote/internal/types"
)

func newTestBridge(mode Mode) *Bridge {
	return New(mode, logger.NewLogger(nil, logger.LogLevelError))
}

func autopark(pct byte) []byte {
	return []byte{protocol.TagAutoPark, pct}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("pull")
	require.NoError(t, err)
	assert.Equal(t, ModePull, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePush, m)

	_, err = ParseMode("sideways")
	assert.Error(t, err)
}

func TestPushModeAppliesImmediately(t *testing.T) {
	b := newTestBridge(ModePush)

	var got []types.VehicleState
	b.Subscribe(func(s types.VehicleState) { got = append(got, s) })

	b.HandleStatus([]byte{protocol.TagAebState, 1})
	b.HandleStatus([]byte{protocol.TagProximity, 0x2C, 0x01})

	s, seq := b.Snapshot()
	assert.True(t, s.AebEnabled)
	assert.Equal(t, uint16(300), s.ProximityCm)
	assert.Equal(t, uint64(2), seq)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].LastUpdateSeq)
	assert.Equal(t, uint64(2), got[1].LastUpdateSeq)
}

func TestPullModeCoalescesButKeepsCompletion(t *testing.T) {
	b := newTestBridge(ModePull)

	b.HandleStatus(autopark(45))
	b.HandleStatus(autopark(80))
	b.HandleStatus(autopark(100))

	// Nothing is visible before the consumer polls.
	s, seq := b.Snapshot()
	assert.Equal(t, types.AutoParkIdle, s.AutoPark.Phase)
	assert.Equal(t, uint64(0), seq)

	s, seq = b.Poll()
	assert.Equal(t, types.AutoParkComplete, s.AutoPark.Phase)
	assert.Equal(t, uint64(3), seq)

	// Completion sticks across polls until a new trigger.
	s, _ = b.Poll()
	assert.Equal(t, types.AutoParkComplete, s.AutoPark.Phase)
}

func TestPullModeNotifiesOnPoll(t *testing.T) {
	b := newTestBridge(ModePull)

	calls := 0
	b.Subscribe(func(types.VehicleState) { calls++ })

	b.HandleStatus([]byte{protocol.TagAebState, 1})
	b.HandleStatus([]byte{protocol.TagAebState, 0})
	assert.Equal(t, 0, calls)

	b.Poll()
	assert.Equal(t, 1, calls)

	// Nothing new, no notification.
	b.Poll()
	assert.Equal(t, 1, calls)
}

func TestApplyLocalPublishesInPullMode(t *testing.T) {
	b := newTestBridge(ModePull)

	b.HandleStatus(autopark(100))
	b.ApplyLocal(types.AutoParkTriggered{})

	s, seq := b.Snapshot()
	assert.Equal(t, types.AutoPark{Phase: types.AutoParkRunning}, s.AutoPark)
	assert.True(t, s.AutoParkArmed)
	assert.Equal(t, uint64(2), seq)
}

func TestIgnoredFramesAreCounted(t *testing.T) {
	b := newTestBridge(ModePush)

	b.HandleStatus(nil)
	b.HandleStatus([]byte{0x42, 1})
	b.HandleStatus([]byte{protocol.TagProximity, 1})

	st := b.Stats()
	assert.Equal(t, uint64(3), st.FramesReceived)
	assert.Equal(t, uint64(3), st.FramesIgnored)
	assert.Equal(t, uint64(0), st.EventsApplied)

	_, seq := b.Snapshot()
	assert.Equal(t, uint64(0), seq)
}

func TestCloseStopsIntake(t *testing.T) {
	b := newTestBridge(ModePull)

	b.HandleStatus(autopark(100))
	b.Close()
	b.Close()
	b.HandleStatus([]byte{protocol.TagAebState, 1})
	b.ApplyLocal(types.AutoParkTriggered{})

	assert.True(t, b.Closed())

	// Frames received before Close are still drained.
	s, seq := b.Poll()
	assert.Equal(t, types.AutoParkComplete, s.AutoPark.Phase)
	assert.False(t, s.AebEnabled)
	assert.Equal(t, uint64(1), seq)
}

func TestUnsubscribe(t *testing.T) {
	b := newTestBridge(ModePush)

	calls := 0
	unsubscribe := b.Subscribe(func(types.VehicleState) { calls++ })
	b.HandleStatus([]byte{protocol.TagAebState, 1})
	unsubscribe()
	unsubscribe()
	b.HandleStatus([]byte{protocol.TagAebState, 0})

	assert.Equal(t, 1, calls)
}

func TestConcurrentIntakeAndPoll(t *testing.T) {
	b := newTestBridge(ModePull)

	const frames = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			b.HandleStatus([]byte{protocol.TagProximity, byte(i), byte(i >> 8)})
		}
		b.HandleStatus(autopark(100))
	}()

	var last uint64
	for i := 0; i < 100; i++ {
		_, seq := b.Poll()
		if seq < last {
			t.Fatalf("sequence went backwards: %d after %d", seq, last)
		}
		last = seq
	}
	wg.Wait()

	s, seq := b.Poll()
	assert.Equal(t, uint64(frames+1), seq)
	assert.Equal(t, types.AutoParkComplete, s.AutoPark.Phase)
	assert.Equal(t, uint16(frames-1), s.ProximityCm)
}

func TestPullModeKeepsCompletionAfterLateProgress(t *testing.T) {
	b := newTestBridge(ModePull)

	b.HandleStatus(autopark(45))
	b.HandleStatus(autopark(100))
	b.HandleStatus(autopark(0))

	s, seq := b.Poll()
	assert.Equal(t, types.AutoPark{Phase: types.AutoParkComplete, Percent: 100}, s.AutoPark)
	assert.Equal(t, uint64(2), seq)

	b.ApplyLocal(types.AutoParkTriggered{})
	b.HandleStatus(autopark(20))
	s, _ = b.Poll()
	assert.Equal(t, types.AutoPark{Phase: types.AutoParkRunning, Percent: 20}, s.AutoPark)
}

func TestBridgeMatchesReducer(t *testing.T) {
	type step struct {
		raw   []byte
		local types.StatusEvent
	}
	steps := []step{
		{raw: []byte{protocol.TagAebState, 1}},
		{local: types.DriveCommanded{Direction: types.DirectionForwardRight}},
		{raw: []byte{protocol.TagProximity, 0x2C, 0x01}},
		{raw: []byte{protocol.TagFaultCode, 7}},
		{local: types.SpeedCommanded{Percent: 55}},
		{local: types.AutoParkTriggered{}},
		{raw: autopark(45)},
		{raw: autopark(100)},
		{raw: autopark(10)},
		{raw: []byte{protocol.TagAebState, 0}},
		{raw: []byte{protocol.TagProximity, 0x10}},
	}

	var events []types.StatusEvent
	for _, st := range steps {
		if st.local != nil {
			events = append(events, st.local)
			continue
		}
		if ev, ok := protocol.Decode(st.raw); ok {
			events = append(events, ev)
		}
	}
	want := state.ApplyAll(types.NewVehicleState(), events...)

	for _, mode := range []Mode{ModePush, ModePull} {
		t.Run(string(mode), func(t *testing.T) {
			b := newTestBridge(mode)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for _, st := range steps {
					if st.local != nil {
						b.ApplyLocal(st.local)
					} else {
						b.HandleStatus(st.raw)
					}
				}
			}()
			<-done

			got, seq := b.Poll()
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("bridge diverged from reducer (-want +got):\n%s", diff)
			}
			assert.Equal(t, want.LastUpdateSeq, seq)
		})
	}
}
