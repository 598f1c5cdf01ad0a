package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps a full copy of the student records in Redis.
//
// Layout:
//   - Sorted Set "leaderboard:scores" maps regNo -> solved count
//   - Hash "leaderboard:students" maps regNo -> record JSON
//   - String "leaderboard:meta" holds LeaderboardMeta and marks the cache warm
//
// The meta key carries the TTL. Once it expires every read is a miss until
// the next Rebuild, and incremental updates are dropped while cold.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
	now   func() time.Time
}

// Key patterns for leaderboard cache.
const (
	keyLeaderboardScores   = "leaderboard:scores"
	keyLeaderboardStudents = "leaderboard:students"
	keyLeaderboardMeta     = "leaderboard:meta"

	// DefaultLeaderboardTTL is the lifetime of a rebuilt snapshot.
	DefaultLeaderboardTTL = 5 * time.Minute

	// data keys outlive the marker so a warm read never sees them vanish
	dataTTLMargin = time.Minute
)

// ErrRegNoEmpty is returned for writes without a registration number.
var ErrRegNoEmpty = errors.New("cache: registration number cannot be empty")

// LeaderboardMeta describes the cached snapshot.
type LeaderboardMeta struct {
	RebuiltAt     time.Time `json:"rebuilt_at"`
	TotalStudents int       `json:"total_students"`
}

// cachedRecord is the hash value layout.
type cachedRecord struct {
	RegNo       string    `json:"regNo"`
	Name        string    `json:"name"`
	Department  string    `json:"department"`
	Year        string    `json:"year"`
	LeetcodeURL string    `json:"leetcodeUrl"`
	TotalSolved int       `json:"totalSolved"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func fromRecord(r student.Record) cachedRecord {
	return cachedRecord{
		RegNo:       r.RegNo,
		Name:        r.Name,
		Department:  string(r.Department),
		Year:        string(r.Year),
		LeetcodeURL: r.ProfileURL,
		TotalSolved: r.SolvedCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (c cachedRecord) toRecord() student.Record {
	return student.Record{
		RegNo:       c.RegNo,
		Name:        c.Name,
		Department:  student.Department(c.Department),
		Year:        student.Year(c.Year),
		ProfileURL:  c.LeetcodeURL,
		SolvedCount: c.TotalSolved,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = DefaultLeaderboardTTL
	}
	return &LeaderboardCache{cache: cache, ttl: ttl, now: time.Now}
}

// Ping checks if Redis is reachable.
func (l *LeaderboardCache) Ping(ctx context.Context) error {
	return l.cache.Ping(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Rebuild replaces the cached snapshot with records in one transaction.
func (l *LeaderboardCache) Rebuild(ctx context.Context, records []student.Record) error {
	pipe := l.cache.Client().TxPipeline()

	pipe.Del(ctx, keyLeaderboardScores, keyLeaderboardStudents)

	if len(records) > 0 {
		zMembers := make([]redis.Z, 0, len(records))
		hashData := make(map[string]any, len(records))
		for _, r := range records {
			if r.RegNo == "" {
				continue
			}
			data, err := json.Marshal(fromRecord(r))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			zMembers = append(zMembers, redis.Z{Score: float64(r.SolvedCount), Member: r.RegNo})
			hashData[r.RegNo] = data
		}
		if len(zMembers) > 0 {
			pipe.ZAdd(ctx, keyLeaderboardScores, zMembers...)
			pipe.HSet(ctx, keyLeaderboardStudents, hashData)
			pipe.Expire(ctx, keyLeaderboardScores, l.ttl+dataTTLMargin)
			pipe.Expire(ctx, keyLeaderboardStudents, l.ttl+dataTTLMargin)
		}
	}

	meta, err := json.Marshal(LeaderboardMeta{
		RebuiltAt:     l.now().UTC(),
		TotalStudents: len(records),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	pipe.Set(ctx, keyLeaderboardMeta, meta, l.ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// Upsert adds or replaces one record while the cache is warm. It reports
// whether the cache was written.
func (l *LeaderboardCache) Upsert(ctx context.Context, r student.Record) (bool, error) {
	if r.RegNo == "" {
		return false, ErrRegNoEmpty
	}

	warm, err := l.cache.exists(ctx, keyLeaderboardMeta)
	if err != nil || !warm {
		return false, err
	}

	data, err := json.Marshal(fromRecord(r))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	pipe := l.cache.Client().TxPipeline()
	pipe.ZAdd(ctx, keyLeaderboardScores, redis.Z{Score: float64(r.SolvedCount), Member: r.RegNo})
	pipe.HSet(ctx, keyLeaderboardStudents, r.RegNo, data)
	pipe.Expire(ctx, keyLeaderboardScores, l.ttl+dataTTLMargin)
	pipe.Expire(ctx, keyLeaderboardStudents, l.ttl+dataTTLMargin)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateScore sets the solved count of a cached record. A record missing
// from a warm cache invalidates the snapshot so the next read rebuilds it.
func (l *LeaderboardCache) UpdateScore(ctx context.Context, regNo string, solvedCount int) (bool, error) {
	if regNo == "" {
		return false, ErrRegNoEmpty
	}

	warm, err := l.cache.exists(ctx, keyLeaderboardMeta)
	if err != nil || !warm {
		return false, err
	}

	raw, err := l.cache.Client().HGet(ctx, keyLeaderboardStudents, regNo).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, l.Invalidate(ctx)
	}
	if err != nil {
		return false, err
	}

	var cr cachedRecord
	if err := json.Unmarshal(raw, &cr); err != nil {
		return false, l.Invalidate(ctx)
	}
	cr.TotalSolved = solvedCount
	cr.UpdatedAt = l.now().UTC()

	return l.Upsert(ctx, cr.toRecord())
}

// Invalidate drops the cached snapshot.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	return l.cache.del(ctx, keyLeaderboardMeta, keyLeaderboardScores, keyLeaderboardStudents)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns every cached record ordered by solved count, highest first.
// Returns ErrCacheMiss when the cache is cold or inconsistent.
func (l *LeaderboardCache) Get(ctx context.Context) ([]student.Record, error) {
	if _, err := l.Meta(ctx); err != nil {
		return nil, err
	}

	regNos, err := l.cache.Client().ZRevRange(ctx, keyLeaderboardScores, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(regNos) == 0 {
		return []student.Record{}, nil
	}

	values, err := l.cache.Client().HMGet(ctx, keyLeaderboardStudents, regNos...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]student.Record, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			return nil, ErrCacheMiss
		}
		var cr cachedRecord
		if err := json.Unmarshal([]byte(str), &cr); err != nil {
			return nil, ErrCacheMiss
		}
		records = append(records, cr.toRecord())
	}
	return records, nil
}

// Meta returns the snapshot metadata, or ErrCacheMiss when cold.
func (l *LeaderboardCache) Meta(ctx context.Context) (*LeaderboardMeta, error) {
	var meta LeaderboardMeta
	if err := l.cache.getJSON(ctx, keyLeaderboardMeta, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
