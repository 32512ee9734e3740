package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCommandKey    = "vehicle:control"
	DefaultAckKey        = "vehicle:control:ack"
	DefaultStatusChannel = "vehicle:status"
)

type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	CommandKey    string
	AckKey        string
	StatusChannel string
	// AckTimeout bounds the wait for the controller's response code.
	// Zero sends without waiting for an acknowledgement.
	AckTimeout time.Duration
}

// redisCommander is the subset of *redis.Client used to send commands.
type redisCommander interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// RedisClient talks to the vehicle controller through Redis. Commands are
// LPUSHed as binary frames onto a list; status frames arrive on a pub/sub
// channel.
//
// Acknowledgements are `[code]` or `[code, command id]`. The ack list is
// cleared before every command, and acks carrying another command's id
// are discarded.
type RedisClient struct {
	client   *redis.Client
	cmds     redisCommander
	opts     RedisOptions
	logger   *logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	sendMu   sync.Mutex

	mu       sync.RWMutex
	onStatus func([]byte)
}

func NewRedisClient(opts RedisOptions, l *logger.Logger) *RedisClient {
	if opts.CommandKey == "" {
		opts.CommandKey = DefaultCommandKey
	}
	if opts.AckKey == "" {
		opts.AckKey = DefaultAckKey
	}
	if opts.StatusChannel == "" {
		opts.StatusChannel = DefaultStatusChannel
	}
	ctx, cancel := context.WithCancel(context.Background())
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisClient{
		client: client,
		cmds:   client,
		opts:   opts,
		logger: l,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *RedisClient) OnStatus(fn func([]byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatus = fn
}

func (r *RedisClient) Init(ctx context.Context) error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// Start listens for status frames until ctx is cancelled or Stop is called.
func (r *RedisClient) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.opts.StatusChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if r.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", r.opts.StatusChannel, err)
	}
	r.logger.Infof("Subscribed to Redis channel: %s", r.opts.StatusChannel)

	channel := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return nil
		case <-r.ctx.Done():
			r.logger.Infof("Client stopped, exiting listener")
			return nil
		case msg, ok := <-channel:
			if !ok {
				if r.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("Redis status channel closed unexpectedly")
			}
			if msg == nil {
				continue
			}
			r.logger.Debugf("Received status frame on %s: % X", msg.Channel, msg.Payload)
			r.deliver([]byte(msg.Payload))
		}
	}
}

func (r *RedisClient) deliver(raw []byte) {
	r.mu.RLock()
	fn := r.onStatus
	r.mu.RUnlock()
	if fn != nil {
		fn(raw)
	}
}

// SendCommand pushes a command frame and, when acknowledgements are
// enabled, waits for the controller's response code.
func (r *RedisClient) SendCommand(ctx context.Context, id uint8, payload []byte) error {
	if r.ctx.Err() != nil {
		return ErrClosed
	}

	// Acks share one list, so commands must not interleave.
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	if r.opts.AckTimeout > 0 {
		// Drop late acks of earlier commands.
		n, err := r.cmds.Del(ctx, r.opts.AckKey).Result()
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", r.opts.AckKey, err)
		}
		if n > 0 {
			r.logger.Debugf("Discarded stale acknowledgements on %s", r.opts.AckKey)
		}
	}

	f := frame(id, payload)
	if err := r.cmds.LPush(ctx, r.opts.CommandKey, f).Err(); err != nil {
		return fmt.Errorf("failed to push command 0x%02X: %w", id, err)
	}
	r.logger.Debugf("Pushed command frame to %s: % X", r.opts.CommandKey, f)

	if r.opts.AckTimeout <= 0 {
		return nil
	}
	return r.awaitAck(ctx, id)
}

func (r *RedisClient) awaitAck(ctx context.Context, id uint8) error {
	deadline := time.Now().Add(r.opts.AckTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w for command 0x%02X within %s", ErrAckTimeout, id, r.opts.AckTimeout)
		}
		result, err := r.cmds.BRPop(ctx, remaining, r.opts.AckKey).Result()
		if err == redis.Nil {
			return fmt.Errorf("%w for command 0x%02X within %s", ErrAckTimeout, id, r.opts.AckTimeout)
		}
		if err != nil {
			return fmt.Errorf("failed to read acknowledgement: %w", err)
		}
		// BRPOP returns [key, value]
		if len(result) < 2 || len(result[1]) == 0 {
			return fmt.Errorf("empty acknowledgement for command 0x%02X", id)
		}
		ack := result[1]
		if len(ack) > 1 && ack[1] != id {
			r.logger.Debugf("Discarding acknowledgement for command 0x%02X while waiting for 0x%02X", ack[1], id)
			continue
		}
		if code := ack[0]; code != protocol.RespOK {
			return &RejectedError{Code: code}
		}
		return nil
	}
}

// Stop closes the connection. It is safe to call more than once.
func (r *RedisClient) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		r.logger.Infof("Closing Redis client")
		r.cancel()
		err = r.client.Close()
	})
	return err
}
