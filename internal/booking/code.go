package booking

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmmassage/dispatch/pkg/logging"
)

// CodePattern matches the human-facing booking code, e.g. RMM202609-0042.
var CodePattern = regexp.MustCompile(`^RMM\d{6}-\d{4}$`)

// FormatCode renders a booking code for the given month and sequence number.
func FormatCode(month time.Time, seq int64) string {
	return fmt.Sprintf("RMM%s-%04d", month.Format("200601"), seq)
}

// CodeAllocator hands out monthly-sequential booking codes. With Redis
// configured the sequence is an atomic INCR per calendar month, which is
// safe under concurrent creation. Without Redis it falls back to
// max-suffix+1 against the bookings table; that path can race and exists
// only for deployments that run without Redis.
type CodeAllocator struct {
	redis  *redis.Client
	db     DB
	logger *logging.Logger
}

// NewCodeAllocator creates an allocator. redisClient may be nil.
func NewCodeAllocator(redisClient *redis.Client, db DB, logger *logging.Logger) *CodeAllocator {
	if logger == nil {
		logger = logging.Default()
	}
	return &CodeAllocator{redis: redisClient, db: db, logger: logger}
}

// Next allocates the next booking code for now's calendar month.
func (a *CodeAllocator) Next(ctx context.Context, now time.Time) (string, error) {
	if a.redis != nil {
		code, err := a.nextFromRedis(ctx, now)
		if err == nil {
			return code, nil
		}
		a.logger.Warn("booking: redis sequence unavailable, falling back to table scan", "error", err)
	}
	return a.nextFromTable(ctx, now)
}

func (a *CodeAllocator) nextFromRedis(ctx context.Context, now time.Time) (string, error) {
	key := "seq:booking:" + now.Format("200601")
	if err := a.seedFromTable(ctx, now, key); err != nil {
		return "", err
	}
	seq, err := a.redis.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("booking: incr %s: %w", key, err)
	}
	// Keep the key a little past month end so late writers in a new
	// month never resurrect an expired counter mid-sequence.
	a.redis.Expire(ctx, key, 40*24*time.Hour)
	return FormatCode(now, seq), nil
}

// seedFromTable raises a missing counter above any codes already issued
// this month (e.g. before Redis was introduced, or after a flush). The
// seed is written with SETNX before the caller's INCR so concurrent
// first allocations on a fresh key cannot re-issue an existing suffix.
func (a *CodeAllocator) seedFromTable(ctx context.Context, now time.Time, key string) error {
	exists, err := a.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("booking: check sequence %s: %w", key, err)
	}
	if exists == 1 {
		return nil
	}
	maxSeq, err := a.maxSequence(ctx, now)
	if err != nil {
		return err
	}
	if maxSeq == 0 {
		return nil
	}
	if err := a.redis.SetNX(ctx, key, maxSeq, 40*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("booking: seed sequence: %w", err)
	}
	return nil
}

func (a *CodeAllocator) nextFromTable(ctx context.Context, now time.Time) (string, error) {
	maxSeq, err := a.maxSequence(ctx, now)
	if err != nil {
		return "", err
	}
	return FormatCode(now, maxSeq+1), nil
}

func (a *CodeAllocator) maxSequence(ctx context.Context, now time.Time) (int64, error) {
	prefix := "RMM" + now.Format("200601") + "-"
	row := a.db.QueryRow(ctx, `
		SELECT code FROM bookings
		WHERE code LIKE $1
		ORDER BY code DESC
		LIMIT 1`, prefix+"%")

	var code string
	if err := row.Scan(&code); err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("booking: max code for month: %w", err)
	}
	suffix := strings.TrimPrefix(code, prefix)
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("booking: malformed code %q: %w", code, err)
	}
	return seq, nil
}
