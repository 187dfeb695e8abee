package follower

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// Redis reads accounts from a Redis set of JSON documents, keyed per
// deployment; the master designation lives in a separate string key.
type Redis struct {
	client      *redis.Client
	accountsKey string
	masterKey   string
}

// NewRedis creates a Redis-backed account store.
func NewRedis(client *redis.Client, accountsKey, masterKey string) *Redis {
	return &Redis{client: client, accountsKey: accountsKey, masterKey: masterKey}
}

func (s *Redis) ListAccounts(ctx context.Context) ([]Account, error) {
	if s.accountsKey == "" {
		return nil, fmt.Errorf("accounts set key is not configured")
	}
	members, err := s.client.SMembers(ctx, s.accountsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS %s: %w", s.accountsKey, err)
	}

	res := make([]Account, 0, len(members))
	for _, m := range members {
		var acc Account
		if err := json.Unmarshal([]byte(m), &acc); err != nil {
			// Skip malformed entries but continue.
			continue
		}
		if acc.ID == "" {
			continue
		}
		res = append(res, acc)
	}
	return res, nil
}

func (s *Redis) ListActiveFollowers(ctx context.Context) ([]Account, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	master, err := s.MasterAccountID(ctx)
	if err != nil {
		return nil, err
	}

	res := accounts[:0]
	for _, acc := range accounts {
		if acc.ID == master || !acc.Active() {
			continue
		}
		res = append(res, acc)
	}
	return res, nil
}

func (s *Redis) Get(ctx context.Context, id string) (Account, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, acc := range accounts {
		if acc.ID == id {
			return acc, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *Redis) MasterAccountID(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.masterKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis GET %s: %w", s.masterKey, err)
	}
	return id, nil
}

// Add upserts an account document. Operational tooling only; the engine
// never writes.
func (s *Redis) Add(ctx context.Context, acc Account) error {
	if acc.ID == "" {
		return fmt.Errorf("account id is required")
	}
	// Remove any existing document for the id first so the set holds one
	// document per account.
	existing, err := s.client.SMembers(ctx, s.accountsKey).Result()
	if err != nil {
		return fmt.Errorf("redis SMEMBERS %s: %w", s.accountsKey, err)
	}
	for _, m := range existing {
		var old Account
		if json.Unmarshal([]byte(m), &old) == nil && old.ID == acc.ID {
			if err := s.client.SRem(ctx, s.accountsKey, m).Err(); err != nil {
				return fmt.Errorf("redis SREM %s: %w", s.accountsKey, err)
			}
		}
	}

	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	if err := s.client.SAdd(ctx, s.accountsKey, string(data)).Err(); err != nil {
		return fmt.Errorf("redis SADD %s: %w", s.accountsKey, err)
	}
	return nil
}

// SetMaster records the master account designation.
func (s *Redis) SetMaster(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, s.masterKey, id, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", s.masterKey, err)
	}
	return nil
}
