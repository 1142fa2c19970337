package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type redisPubSub struct {
	cfg       RedisConfig
	client    *redis.Client
	pubsub    *redis.PubSub
	logger    *logger.CanonicalLogger
	messageCh chan Message
	cancel    context.CancelFunc
	onConnect ConnectHandler
	onLost    LostHandler
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewRedisPubSub creates a broker backed by Redis pub/sub. Nothing is dialled until Connect.
func NewRedisPubSub(cfg RedisConfig, log *logger.CanonicalLogger) Broker {
	return &redisPubSub{
		cfg:       cfg,
		logger:    log,
		messageCh: make(chan Message, 16),
	}
}

func (r *redisPubSub) OnConnect(h ConnectHandler)     { r.onConnect = h }
func (r *redisPubSub) OnConnectionLost(h LostHandler) { r.onLost = h }

// Connect dials Redis and validates the connection with a ping.
func (r *redisPubSub) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)
	r.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})

	if err := r.client.Ping(ctx).Err(); err != nil {
		_ = r.client.Close()
		r.client = nil
		return fmt.Errorf("%w: redis at %s: %v", ErrConnect, addr, err)
	}

	r.logger.Info("redis client initialized", logger.String("addr", addr))
	if r.onConnect != nil {
		r.onConnect(0)
	}
	return nil
}

// Publish publishes a message to a Redis channel
func (r *redisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if r.client == nil {
		return fmt.Errorf("%w: not connected", ErrPublish)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

// Subscribe subscribes to Redis channels
func (r *redisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	if len(channels) == 0 {
		return r.messageCh, nil
	}
	if r.client == nil {
		return nil, fmt.Errorf("%w: not connected", ErrSubscribe)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		if err := r.pubsub.Subscribe(ctx, channels...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSubscribe, err)
		}
		r.logger.Info("subscribed to redis channels", logger.Any("channels", channels))
		return r.messageCh, nil
	}

	ps := r.client.Subscribe(ctx, channels...)
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", ErrSubscribe, err)
	}
	r.pubsub = ps

	// The listener outlives the subscribe call; it stops on Close.
	listenCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.listen(listenCtx)

	r.logger.Info("subscribed to redis channels", logger.Any("channels", channels))
	return r.messageCh, nil
}

// Unsubscribe unsubscribes from Redis channels
func (r *redisPubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub == nil {
		return nil
	}
	return r.pubsub.Unsubscribe(ctx, channels...)
}

// Close closes the Redis connection
func (r *redisPubSub) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Lock()
		if r.pubsub != nil {
			_ = r.pubsub.Close()
		}
		r.mu.Unlock()
		if r.client != nil {
			if cerr := r.client.Close(); cerr != nil {
				r.logger.WithError(cerr).Error("failed to close redis client")
				err = cerr
			}
		}
	})
	return err
}

// listen listens for messages from subscribed channels
func (r *redisPubSub) listen(ctx context.Context) {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping redis listener")
			return
		case m, ok := <-ch:
			if !ok {
				r.logger.Info("redis pubsub channel closed")
				if r.onLost != nil && ctx.Err() == nil {
					r.onLost(fmt.Errorf("redis pubsub channel closed"))
				}
				return
			}
			select {
			case r.messageCh <- Message{Channel: m.Channel, Payload: []byte(m.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}
}
