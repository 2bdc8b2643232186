package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"chat-quiz-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches question banks from a backing store (e.g. Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankRepository caches whole banks as JSON under quiz:bank:{id} and falls
// back to the loader on a miss. Unlike a per-question hash, the blob keeps
// question order, which the session cursor depends on.
type BankRepository struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankRepository(client *redis.Client, loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.fromCache(ctx, bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if bank, ok := r.fromCache(ctx, bankID); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}
		if err := bank.Validate(); err != nil {
			return domain.Bank{}, err
		}

		if data, err := json.Marshal(bank); err == nil {
			// best-effort cache fill
			_ = r.client.Set(ctx, r.key(bankID), data, r.ttlWithJitter()).Err()
		}
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (r *BankRepository) fromCache(ctx context.Context, bankID string) (domain.Bank, bool) {
	data, err := r.client.Get(ctx, r.key(bankID)).Bytes()
	if err != nil || len(data) == 0 {
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		return domain.Bank{}, false
	}
	return bank, true
}

func (r *BankRepository) key(bankID string) string {
	return "quiz:bank:" + bankID
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
