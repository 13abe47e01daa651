package store

import (
	"context"
	"strings"

	"github.com/cutekitten000/backlog/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notifier fans store changes out to other backend instances so their live
// queries reload too. Publish is called after every successful write;
// Listen blocks until ctx is done and calls fn for remote changes only.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	Listen(ctx context.Context, fn func(topic string)) error
}

// NoopNotifier keeps changes in-process.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, string) error { return nil }

func (NoopNotifier) Listen(ctx context.Context, _ func(string)) error {
	<-ctx.Done()
	return nil
}

const ChangesChannel = "backlog:changes"

// RedisNotifier publishes "<instance>|<topic>" on a redis pub/sub channel.
type RedisNotifier struct {
	client   *redis.Client
	channel  string
	instance string
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		client:   client,
		channel:  ChangesChannel,
		instance: uuid.NewString(),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, topic string) error {
	return n.client.Publish(ctx, n.channel, n.instance+"|"+topic).Err()
}

func (n *RedisNotifier) Listen(ctx context.Context, fn func(topic string)) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	utils.Log.WithField("channel", n.channel).Info("Listening for remote store changes")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, topic, found := strings.Cut(msg.Payload, "|")
			if !found {
				utils.Log.WithFields(logrus.Fields{"payload": msg.Payload}).Warn("Malformed change message")
				continue
			}
			if origin == n.instance {
				continue
			}
			fn(topic)
		}
	}
}

// NewNotifier picks the change bus by name: "redis" or anything else for noop.
func NewNotifier(kind string, client *redis.Client) Notifier {
	if kind == "redis" && client != nil {
		return NewRedisNotifier(client)
	}
	return NoopNotifier{}
}
