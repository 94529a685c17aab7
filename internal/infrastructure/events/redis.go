package events

import (
	"context"
	"encoding/json"

	"fastpay-ledger/internal/domain/events"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier publishes changes on a per-user channel so every API
// instance can serve subscribers.
type RedisNotifier struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, prefix string, log *zap.Logger) *RedisNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisNotifier{rdb: rdb, prefix: prefix, log: log}
}

func (n *RedisNotifier) channel(userID string) string { return n.prefix + "account:" + userID }

func (n *RedisNotifier) Publish(ctx context.Context, ev events.AccountChanged) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel(ev.UserID), raw).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, userID string) (<-chan events.AccountChanged, error) {
	ps := n.rdb.Subscribe(ctx, n.channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan events.AccountChanged, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev events.AccountChanged
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					n.log.Warn("drop malformed account event", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
