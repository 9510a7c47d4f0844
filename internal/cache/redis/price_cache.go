package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predyx/predyx/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// quote lives at "quote:{marketID}" with fields "yes", "no" and "ts".
type PriceCache struct {
	rdb *redis.Client
}

func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func quoteKey(marketID int64) string {
	return "quote:" + strconv.FormatInt(marketID, 10)
}

// SetPrice stores the latest YES/NO quote for a market.
func (pc *PriceCache) SetPrice(ctx context.Context, marketID int64, yes, no float64) error {
	fields := map[string]any{
		"yes": strconv.FormatFloat(yes, 'f', -1, 64),
		"no":  strconv.FormatFloat(no, 'f', -1, 64),
		"ts":  strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, quoteKey(marketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %d: %w", marketID, err)
	}
	return nil
}

// GetPrice retrieves the latest quote for a market, or domain.ErrNotFound
// when no quote has been cached yet.
func (pc *PriceCache) GetPrice(ctx context.Context, marketID int64) (float64, float64, error) {
	vals, err := pc.rdb.HGetAll(ctx, quoteKey(marketID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get quote %d: %w", marketID, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}
	yes, err := strconv.ParseFloat(vals["yes"], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("redis: parse yes quote %d: %w", marketID, err)
	}
	no, err := strconv.ParseFloat(vals["no"], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("redis: parse no quote %d: %w", marketID, err)
	}
	return yes, no, nil
}
