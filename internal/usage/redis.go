package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix  = "fairytales:usage:"
	redisMaxRetries = 32
)

// RedisStore keeps one JSON ledger per account key. Updates use
// WATCH/MULTI so concurrent writers never lose an increment.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) key(accountID string) string {
	return redisKeyPrefix + accountID
}

func getLedger(ctx context.Context, c redis.Cmdable, key string) (Ledger, error) {
	var ledger Ledger
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger, nil
	}
	if err != nil {
		return ledger, fmt.Errorf("failed to get ledger: %w", err)
	}
	if err := json.Unmarshal(data, &ledger); err != nil {
		return ledger, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return ledger, nil
}

func (s *RedisStore) Load(ctx context.Context, accountID string) (Ledger, error) {
	return getLedger(ctx, s.client, s.key(accountID))
}

func (s *RedisStore) Update(ctx context.Context, accountID string, fn func(*Ledger) error) (Ledger, error) {
	key := s.key(accountID)
	var result Ledger

	txf := func(tx *redis.Tx) error {
		ledger, err := getLedger(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(&ledger); err != nil {
			return err
		}
		data, err := json.Marshal(ledger)
		if err != nil {
			return fmt.Errorf("failed to encode ledger: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			result = ledger
		}
		return err
	}

	for attempt := 0; attempt < redisMaxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			logrus.WithFields(logrus.Fields{
				"account": accountID,
				"attempt": attempt + 1,
			}).Debug("Ledger changed concurrently, retrying")
			continue
		}
		if err != nil {
			return Ledger{}, err
		}
		return result, nil
	}
	return Ledger{}, fmt.Errorf("ledger update for %s kept conflicting", accountID)
}
