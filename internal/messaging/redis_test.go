package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"
)

func TestRedisDefaults(t *testing.T) {
	r := NewRedisClient(RedisOptions{Addr: "127.0.0.1:6379"}, logger.NewLogger(nil, logger.LogLevelError))
	defer r.Stop()

	assert.Equal(t, DefaultCommandKey, r.opts.CommandKey)
	assert.Equal(t, DefaultAckKey, r.opts.AckKey)
	assert.Equal(t, DefaultStatusChannel, r.opts.StatusChannel)
	assert.Equal(t, "127.0.0.1:6379", r.client.Options().Addr)
}

func TestRedisSendAfterStop(t *testing.T) {
	r := NewRedisClient(RedisOptions{Addr: "127.0.0.1:6379"}, logger.NewLogger(nil, logger.LogLevelError))
	assert.NoError(t, r.Stop())
	assert.NoError(t, r.Stop())
	assert.ErrorIs(t, r.SendCommand(context.Background(), 1, []byte{5}), ErrClosed)
}

func TestRejectedError(t *testing.T) {
	err := error(&RejectedError{Code: protocol.RespBusy})
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, "command rejected: busy (0x01)", err.Error())
}

func TestFrame(t *testing.T) {
	payload := []byte{0x08}
	f := frame(0x01, payload)
	assert.Equal(t, []byte{0x01, 0x08}, f)
	f[1] = 0
	assert.Equal(t, byte(0x08), payload[0])
}

// fakeAckList stands in for the command and ack lists. onPush plays the
// controller and may queue acknowledgements.
type fakeAckList struct {
	mu       sync.Mutex
	acks     []string
	commands [][]byte
	onPush   func(f *fakeAckList, cmd []byte)
}

func (f *fakeAckList) queueAck(ack ...byte) {
	f.acks = append(f.acks, string(ack))
}

func (f *fakeAckList) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.acks))
	f.acks = nil
	return redis.NewIntResult(n, nil)
}

func (f *fakeAckList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := values[0].([]byte)
	f.commands = append(f.commands, cmd)
	if f.onPush != nil {
		f.onPush(f, cmd)
	}
	return redis.NewIntResult(int64(len(f.commands)), nil)
}

func (f *fakeAckList) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.acks) == 0 {
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
	ack := f.acks[0]
	f.acks = f.acks[1:]
	return redis.NewStringSliceResult([]string{keys[0], ack}, nil)
}

func newAckTestClient(t *testing.T, acks *fakeAckList) *RedisClient {
	t.Helper()
	r := NewRedisClient(RedisOptions{Addr: "127.0.0.1:6379", AckTimeout: time.Second}, logger.NewLogger(nil, logger.LogLevelError))
	t.Cleanup(func() { r.Stop() })
	r.cmds = acks
	return r
}

func TestRedisLateAckDoesNotLeakIntoNextCommand(t *testing.T) {
	acks := &fakeAckList{}
	r := newAckTestClient(t, acks)
	ctx := context.Background()

	// The controller misses the deadline for the first command.
	err := r.SendCommand(ctx, 0x01, []byte{0x08})
	require.ErrorIs(t, err, ErrAckTimeout)

	// Its busy code arrives late, then the controller accepts the next command.
	acks.mu.Lock()
	acks.queueAck(protocol.RespBusy)
	acks.onPush = func(f *fakeAckList, cmd []byte) { f.queueAck(protocol.RespOK) }
	acks.mu.Unlock()

	assert.NoError(t, r.SendCommand(ctx, 0x02, []byte{40}))
	assert.Len(t, acks.commands, 2)
}

func TestRedisDiscardsAckForOtherCommand(t *testing.T) {
	acks := &fakeAckList{
		onPush: func(f *fakeAckList, cmd []byte) {
			f.queueAck(protocol.RespBusy, 0x01)
			f.queueAck(protocol.RespOK, cmd[0])
		},
	}
	r := newAckTestClient(t, acks)

	assert.NoError(t, r.SendCommand(context.Background(), 0x03, []byte{1}))
}

func TestRedisRejectedAck(t *testing.T) {
	acks := &fakeAckList{
		onPush: func(f *fakeAckList, cmd []byte) { f.queueAck(protocol.RespInvalid, cmd[0]) },
	}
	r := newAckTestClient(t, acks)

	err := r.SendCommand(context.Background(), 0x02, []byte{40})
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, protocol.RespInvalid, rejected.Code)
}
