package events

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

const messageKey = "msg"

type RedisConfig struct {
	Enable bool   `koanf:"enable"`
	URL    string `koanf:"url"`
	Stream string `koanf:"stream"`
}

var DefaultRedisConfig = RedisConfig{
	Enable: false,
	URL:    "",
	Stream: "claimstake.notifications",
}

var TestRedisConfig = RedisConfig{
	Enable: true,
	URL:    "",
	Stream: "claimstake.notifications.test",
}

func RedisConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultRedisConfig.Enable, "publish notifications to a redis stream")
	f.String(prefix+".url", DefaultRedisConfig.URL, "url of redis server")
	f.String(prefix+".stream", DefaultRedisConfig.Stream, "redis stream name for notifications")
}

// RedisPublisher appends one JSON envelope per notification to a redis
// stream. Indexers consume the stream at their own pace; the publisher never
// waits on them.
type RedisPublisher struct {
	client redis.UniversalClient
	stream string
}

func NewRedisPublisher(cfg *RedisConfig) (*RedisPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url cannot be empty")
	}
	if cfg.Stream == "" {
		return nil, errors.New("stream name cannot be empty")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{
		client: redis.NewClient(opts),
		stream: cfg.Stream,
	}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, n *Notification) {
	value, err := json.Marshal(n)
	if err != nil {
		log.Error("Error marshaling notification", "kind", n.Kind, "assertion", n.AssertionID, "err", err)
		return
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{messageKey: value},
	}).Err()
	if err != nil {
		log.Error("Error adding notification to redis stream", "stream", p.stream, "assertion", n.AssertionID, "err", err)
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
