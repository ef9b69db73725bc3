// Package ledger implements the ledger repository: idempotent save by
// (processed_by, correlation_id) and range summaries by processed_at, backed
// by a Redis hash per entry plus a sorted set per processor group for
// time-range lookups. A Lua script writes the hash and the sorted-set member
// together, guarded on the hash not already existing, so a racing
// re-delivery of the same correlation_id is a no-op rather than a
// double-count.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rinha-gateway/payment-router/internal/apperr"
	"github.com/rinha-gateway/payment-router/internal/model"
	"github.com/rinha-gateway/payment-router/internal/roundmoney"
)

// saveScript atomically guards against double-saving the same
// correlation_id: it only writes the hash and sorted-set member if the hash
// did not already exist, returning 0 when a duplicate save is a no-op.
var saveScript = redis.NewScript(`
local hash_key = KEYS[1]
local zset_key = KEYS[2]
local correlation_id = ARGV[1]
local payment_json = ARGV[2]
local score = ARGV[3]

if redis.call('EXISTS', hash_key) == 1 then
	return 0
end

redis.call('HSET', hash_key, 'payment', payment_json)
redis.call('ZADD', zset_key, score, correlation_id)
return 1
`)

// Ledger is the Redis-backed store of successfully processed payments,
// partitioned by processor group.
type Ledger struct {
	client *redis.Client
}

// New wraps an already-connected redis.Client.
func New(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func hashKey(group model.ProcessorName, correlationID string) string {
	return fmt.Sprintf("ledger:%s:%s", group, correlationID)
}

func zsetKey(group model.ProcessorName) string {
	return fmt.Sprintf("ledger:%s:by-time", group)
}

// Save persists a successfully processed payment under its processor group.
// It is idempotent on (processed_by, correlation_id): a second save for the
// same pair is a no-op and does not affect summary totals.
func (l *Ledger) Save(ctx context.Context, group model.ProcessorName, payment model.Payment) error {
	payload, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	scoreMicros := payment.ProcessedAt.UnixMicro()
	err = saveScript.Run(ctx, l.client,
		[]string{hashKey(group, payment.CorrelationID), zsetKey(group)},
		payment.CorrelationID, payload, scoreMicros,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrLedgerUnavailable, err)
	}
	return nil
}

// IsAlreadyProcessed reports whether correlationID has a Ledger entry under
// group already — the dedup check the worker loop consults before
// dispatching.
func (l *Ledger) IsAlreadyProcessed(ctx context.Context, group model.ProcessorName, correlationID string) (bool, error) {
	n, err := l.client.Exists(ctx, hashKey(group, correlationID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %s", apperr.ErrLedgerUnavailable, err)
	}
	return n == 1, nil
}

// IsAlreadyProcessedAnywhere checks both processor groups, since the dedup
// invariant is "at most one Ledger entry across both groups" for a given
// correlation_id, not per group.
func (l *Ledger) IsAlreadyProcessedAnywhere(ctx context.Context, correlationID string) (bool, error) {
	forDefault, err := l.IsAlreadyProcessed(ctx, model.Default, correlationID)
	if err != nil {
		return false, err
	}
	if forDefault {
		return true, nil
	}
	return l.IsAlreadyProcessed(ctx, model.Fallback, correlationID)
}

// Summary is the (count, total amount) pair returned for a processor group
// over a time window.
type Summary struct {
	TotalRequests int
	TotalAmount   float64
}

// Summarize returns the count and rounded total amount of payments in group
// whose processed_at falls in [from, to].
func (l *Ledger) Summarize(ctx context.Context, group model.ProcessorName, from, to time.Time) (Summary, error) {
	members, err := l.client.ZRangeByScore(ctx, zsetKey(group), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.UnixMicro()),
		Max: fmt.Sprintf("%d", to.UnixMicro()),
	}).Result()
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %s", apperr.ErrLedgerUnavailable, err)
	}
	if len(members) == 0 {
		return Summary{}, nil
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, correlationID := range members {
		cmds[i] = pipe.HGet(ctx, hashKey(group, correlationID), "payment")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Summary{}, fmt.Errorf("%w: %s", apperr.ErrLedgerUnavailable, err)
	}

	var total float64
	count := 0
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue
		}
		var payment model.Payment
		if err := json.Unmarshal([]byte(raw), &payment); err != nil {
			continue
		}
		total += payment.Amount
		count++
	}

	return Summary{TotalRequests: count, TotalAmount: roundmoney.ToCents(total)}, nil
}

// Purge removes every ledger key for both processor groups. Test-only,
// wired to POST /purge-payments.
func (l *Ledger) Purge(ctx context.Context) error {
	for _, group := range []model.ProcessorName{model.Default, model.Fallback} {
		members, err := l.client.ZRange(ctx, zsetKey(group), 0, -1).Result()
		if err != nil {
			return fmt.Errorf("%w: %s", apperr.ErrLedgerUnavailable, err)
		}
		keys := make([]string, 0, len(members)+1)
		for _, correlationID := range members {
			keys = append(keys, hashKey(group, correlationID))
		}
		keys = append(keys, zsetKey(group))
		if err := l.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("%w: %s", apperr.ErrLedgerUnavailable, err)
		}
	}
	return nil
}
