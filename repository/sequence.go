package repository

import (
	"context"
	"fmt"

	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceAllocator hands out strictly increasing numbers per scope. tx is
// the transaction the caller will insert the numbered row in.
type SequenceAllocator interface {
	Next(ctx context.Context, tx *gorm.DB, scope string) (int64, error)
	// Advance makes sure the next number handed out is greater than floor
	Advance(ctx context.Context, tx *gorm.DB, scope string, floor int64) error
}

// OrderNumberScope is the counter name for order numbers minted in year
func OrderNumberScope(year int) string {
	return fmt.Sprintf("order_number:%d", year)
}

// DBSequence keeps counters in the order_sequences table. The increment runs
// inside the caller's transaction so a rolled back insert gives its number back.
type DBSequence struct{}

// NewDBSequence creates a table backed allocator
func NewDBSequence() *DBSequence {
	return &DBSequence{}
}

func (s *DBSequence) ensure(tx *gorm.DB, scope string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.OrderSequence{Name: scope}).Error
}

// Next increments the counter for scope and returns the new value
func (s *DBSequence) Next(ctx context.Context, tx *gorm.DB, scope string) (int64, error) {
	tx = tx.WithContext(ctx)
	if err := s.ensure(tx, scope); err != nil {
		return 0, fmt.Errorf("failed to create sequence %s: %w", scope, err)
	}

	// The UPDATE takes the row lock, concurrent callers queue here
	if err := tx.Model(&models.OrderSequence{}).
		Where("name = ?", scope).
		UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", scope, err)
	}

	var seq models.OrderSequence
	if err := tx.Where("name = ?", scope).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", scope, err)
	}
	return seq.Value, nil
}

// Advance raises the counter to floor when it is behind
func (s *DBSequence) Advance(ctx context.Context, tx *gorm.DB, scope string, floor int64) error {
	tx = tx.WithContext(ctx)
	if err := s.ensure(tx, scope); err != nil {
		return fmt.Errorf("failed to create sequence %s: %w", scope, err)
	}
	return tx.Model(&models.OrderSequence{}).
		Where("name = ? AND value < ?", scope, floor).
		UpdateColumn("value", floor).Error
}

const redisKeyPrefix = "manuorder:"

var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
  redis.call('SET', KEYS[1], ARGV[1])
  return floor
end
return current
`)

// RedisSequence allocates numbers with INCR. Numbers taken by a rolled back
// insert are not reused, so sequences may have gaps.
type RedisSequence struct {
	client redis.UniversalClient
}

// NewRedisSequence creates a Redis backed allocator
func NewRedisSequence(client redis.UniversalClient) *RedisSequence {
	return &RedisSequence{client: client}
}

// Next increments the counter for scope and returns the new value
func (s *RedisSequence) Next(ctx context.Context, _ *gorm.DB, scope string) (int64, error) {
	n, err := s.client.Incr(ctx, redisKeyPrefix+scope).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", scope, err)
	}
	return n, nil
}

// Advance raises the counter to floor when it is behind
func (s *RedisSequence) Advance(ctx context.Context, _ *gorm.DB, scope string, floor int64) error {
	if err := advanceScript.Run(ctx, s.client, []string{redisKeyPrefix + scope}, floor).Err(); err != nil {
		return fmt.Errorf("failed to advance sequence %s: %w", scope, err)
	}
	return nil
}
