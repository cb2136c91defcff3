package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisChannel.
type RedisConfig struct {
	Addr     string // Redis address (e.g., "localhost:6379")
	Password string // Redis password (empty for no auth)
	DB       int    // Redis database number
	Inbound  string // pub/sub channel the host publishes notifications on
	Outbound string // pub/sub channel the bridge publishes commands on
}

// RedisChannel relays the bridge protocol through Redis pub/sub, for hosts that sit
// behind a broker rather than a direct pipe.
type RedisChannel struct {
	client *redis.Client
	config RedisConfig
	opts   channelOptions

	mu         sync.Mutex
	pubsub     *redis.PubSub
	subscribed atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
	reader     readerLoop
}

var _ Channel = (*RedisChannel)(nil)

// NewRedisChannel creates a RedisChannel. No connection is made until Subscribe or Dispatch.
func NewRedisChannel(config RedisConfig, opts ...ChannelOption) *RedisChannel {
	if config.Inbound == "" {
		config.Inbound = "upbridge:inbound"
	}
	if config.Outbound == "" {
		config.Outbound = "upbridge:outbound"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisChannel{
		client: client,
		config: config,
		opts:   applyChannelOptions(opts),
	}
}

// Ping checks the Redis connection.
func (r *RedisChannel) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Subscribe implements Channel. It returns after Redis confirms the subscription, so
// no notification published afterwards is missed.
func (r *RedisChannel) Subscribe(ctx context.Context, deliver DeliverFunc, onError func(error)) error {
	if r.closed.Load() {
		return ErrChannelClosed
	}
	if !r.subscribed.CompareAndSwap(false, true) {
		return errors.New("redis channel: already subscribed")
	}

	pubsub := r.client.Subscribe(ctx, r.config.Inbound)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.config.Inbound, err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.mu.Unlock()

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	ch := pubsub.Channel()
	r.reader.start(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg, err := r.opts.codec.DecodeMessage([]byte(m.Payload))
				if err != nil {
					report(err)
					continue
				}
				if err := r.reader.deliver(ctx, deliver, msg); err != nil {
					report(err)
				}
			}
		}
	})
	return nil
}

// Dispatch implements Channel.
func (r *RedisChannel) Dispatch(ctx context.Context, cmd Command) error {
	if r.closed.Load() {
		return ErrChannelClosed
	}

	data, err := r.opts.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.config.Outbound, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", cmd.Command, err)
	}
	return nil
}

// Close implements Channel.
func (r *RedisChannel) Close() error {
	var closeErr error
	r.closeOnce.Do(func() {
		r.closed.Store(true)

		r.mu.Lock()
		if r.pubsub != nil {
			closeErr = r.pubsub.Close()
		}
		r.mu.Unlock()

		r.reader.wait()
		if err := r.client.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	})
	return closeErr
}
