package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hireboard/hireboard/internal/pkg/cache"
)

// summaryTTL keeps dashboard reads cheap without letting stale quota
// numbers linger; every mutation also invalidates explicitly.
const summaryTTL = 60 * time.Second

// SummaryCache caches per-customer quota summaries. A nil cache on the
// service disables caching entirely (tests).
type SummaryCache interface {
	Get(customerID uint) (*QuotaSummary, bool)
	Set(customerID uint, sum *QuotaSummary)
	Invalidate(customerID uint)
}

// redisSummaryCache stores summaries as JSON in the shared Redis cache.
type redisSummaryCache struct{}

// NewRedisSummaryCache returns the Redis-backed summary cache.
func NewRedisSummaryCache() SummaryCache {
	return redisSummaryCache{}
}

func summaryKey(customerID uint) string {
	return fmt.Sprintf("billing:summary:%d", customerID)
}

func (redisSummaryCache) Get(customerID uint) (*QuotaSummary, bool) {
	raw, err := cache.Get(summaryKey(customerID))
	if err != nil {
		return nil, false
	}
	var sum QuotaSummary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, false
	}
	return &sum, true
}

func (redisSummaryCache) Set(customerID uint, sum *QuotaSummary) {
	raw, err := json.Marshal(sum)
	if err != nil {
		return
	}
	_ = cache.Set(summaryKey(customerID), string(raw), summaryTTL)
}

func (redisSummaryCache) Invalidate(customerID uint) {
	_ = cache.Delete(summaryKey(customerID))
}
