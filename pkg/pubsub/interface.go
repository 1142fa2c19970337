package pubsub

import (
	"context"
	"errors"
)

var (
	// ErrConnect is returned when the initial connection cannot be established.
	ErrConnect = errors.New("broker connect failed")
	// ErrRefused is joined with ErrConnect when the broker answered and
	// rejected the client, e.g. bad credentials. Retrying will not help.
	ErrRefused = errors.New("broker refused connection")
	// ErrPublish is returned when a message could not be delivered to the broker.
	ErrPublish = errors.New("broker publish failed")
	// ErrSubscribe is returned when a subscription could not be established.
	ErrSubscribe = errors.New("broker subscribe failed")
)

// Message represents a pub/sub message
type Message struct {
	Channel string
	Payload []byte
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	// Publish publishes a message to a channel
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Subscriber defines the interface for subscribing to messages
type Subscriber interface {
	// Subscribe subscribes to one or more channels and returns the message channel.
	// Repeated calls return the same channel.
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
	Unsubscribe(ctx context.Context, channels ...string) error
	Close() error
}

// PubSub combines Publisher and Subscriber
type PubSub interface {
	Publisher
	Subscriber
}

// ConnectHandler receives the broker's connect acknowledgement. Code zero means accepted.
type ConnectHandler func(code byte)

// LostHandler is called when an established connection drops.
type LostHandler func(err error)

// Broker is a PubSub with an explicit connection lifecycle. Handlers must be
// registered before Connect. Close stops background processing and disconnects.
type Broker interface {
	PubSub
	Connect(ctx context.Context) error
	OnConnect(h ConnectHandler)
	OnConnectionLost(h LostHandler)
}
