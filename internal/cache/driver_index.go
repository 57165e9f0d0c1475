package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/flowride/flow/internal/geo"
	"github.com/redis/go-redis/v9"
)

const (
	geoIndexKey         = "drivers:geohash"
	driverMetaKeyPrefix = "driver:meta:"
	offerLockKeyPrefix  = "driver:offer:"

	// Stored members must be at least as fine as the finest query bucket
	// (precision 8), or a bucket prefix could be longer than the member
	// hash and the range query would miss it.
	minStoragePrecision = 8
	maxStoragePrecision = 12
)

// Candidate is a driver returned by a proximity search, already filtered
// to online=true and true distance within the query radius.
type Candidate struct {
	DriverID string
	Lat      float64
	Lng      float64
	Distance float64 // km from the query point
	Status   string
}

// DriverIndex answers "which online drivers are near this point" and
// holds the short-lived per-driver offer lock used during dispatch.
type DriverIndex interface {
	Upsert(ctx context.Context, driverID string, lat, lng float64) error
	SetPresence(ctx context.Context, driverID string, online bool, status string) error
	Remove(ctx context.Context, driverID string) error
	Search(ctx context.Context, lat, lng, radiusKm float64) ([]Candidate, error)
	AcquireOfferLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error)
	ReleaseOfferLock(ctx context.Context, driverID string) error
}

type driverIndex struct {
	redis     *redis.Client
	precision int
}

func NewDriverIndex(redisClient *redis.Client, precision int) DriverIndex {
	return &driverIndex{redis: redisClient, precision: clampStoragePrecision(precision)}
}

func clampStoragePrecision(p int) int {
	if p < minStoragePrecision {
		return minStoragePrecision
	}
	if p > maxStoragePrecision {
		return maxStoragePrecision
	}
	return p
}

func metaKey(driverID string) string {
	return driverMetaKeyPrefix + driverID
}

func indexMember(hash, driverID string) string {
	return hash + ":" + driverID
}

func (c *driverIndex) Upsert(ctx context.Context, driverID string, lat, lng float64) error {
	if !geo.ValidCoordinates(lat, lng) {
		return nil
	}

	hash := geo.Encode(lat, lng, c.precision)

	// Drop the previous index member if the driver moved cells.
	oldHash, err := c.redis.HGet(ctx, metaKey(driverID), "geohash").Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := c.redis.Pipeline()
	if oldHash != "" && oldHash != hash {
		pipe.ZRem(ctx, geoIndexKey, indexMember(oldHash, driverID))
	}
	pipe.ZAdd(ctx, geoIndexKey, redis.Z{Score: 0, Member: indexMember(hash, driverID)})
	pipe.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"geohash":   hash,
		"lat":       strconv.FormatFloat(lat, 'f', -1, 64),
		"lng":       strconv.FormatFloat(lng, 'f', -1, 64),
		"heartbeat": strconv.FormatInt(time.Now().Unix(), 10),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (c *driverIndex) SetPresence(ctx context.Context, driverID string, online bool, status string) error {
	if err := c.redis.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"online": strconv.FormatBool(online),
		"status": status,
	}).Err(); err != nil {
		return err
	}

	if !online {
		return c.removeFromIndex(ctx, driverID)
	}
	return nil
}

func (c *driverIndex) Remove(ctx context.Context, driverID string) error {
	if err := c.removeFromIndex(ctx, driverID); err != nil {
		return err
	}
	return c.redis.Del(ctx, metaKey(driverID)).Err()
}

func (c *driverIndex) removeFromIndex(ctx context.Context, driverID string) error {
	hash, err := c.redis.HGet(ctx, metaKey(driverID), "geohash").Result()
	if err == redis.Nil || hash == "" {
		return nil
	}
	if err != nil {
		return err
	}
	return c.redis.ZRem(ctx, geoIndexKey, indexMember(hash, driverID)).Err()
}

// Search partitions the query disc into geohash range buckets, issues one
// lexical range query per bucket, then discards geohash false positives
// with a true great-circle distance check. Malformed coordinates yield an
// empty result, not an error.
func (c *driverIndex) Search(ctx context.Context, lat, lng, radiusKm float64) ([]Candidate, error) {
	ranges := geo.CoverRadius(lat, lng, radiusKm)
	if len(ranges) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	candidates := make([]Candidate, 0, 16)

	for _, r := range ranges {
		members, err := c.redis.ZRangeByLex(ctx, geoIndexKey, &redis.ZRangeBy{
			Min: "[" + r.Start,
			Max: "(" + r.End,
		}).Result()
		if err != nil {
			return nil, err
		}

		for _, member := range members {
			idx := strings.LastIndexByte(member, ':')
			if idx < 0 {
				continue
			}
			driverID := member[idx+1:]
			if seen[driverID] {
				continue
			}
			seen[driverID] = true

			meta, err := c.redis.HGetAll(ctx, metaKey(driverID)).Result()
			if err != nil {
				continue
			}
			if meta["online"] != "true" {
				continue
			}

			dLat, errLat := strconv.ParseFloat(meta["lat"], 64)
			dLng, errLng := strconv.ParseFloat(meta["lng"], 64)
			if errLat != nil || errLng != nil {
				continue
			}

			dist := geo.Haversine(lat, lng, dLat, dLng)
			if dist > radiusKm {
				continue
			}

			candidates = append(candidates, Candidate{
				DriverID: driverID,
				Lat:      dLat,
				Lng:      dLng,
				Distance: dist,
				Status:   meta["status"],
			})
		}
	}

	return candidates, nil
}

// AcquireOfferLock takes the short-lived "currently offered" lock for a
// driver so two concurrent dispatches cannot offer to the same driver at
// once. The TTL bounds the hold in case the dispatcher dies mid-offer.
func (c *driverIndex) AcquireOfferLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	return c.redis.SetNX(ctx, offerLockKeyPrefix+driverID, "1", ttl).Result()
}

func (c *driverIndex) ReleaseOfferLock(ctx context.Context, driverID string) error {
	return c.redis.Del(ctx, offerLockKeyPrefix+driverID).Err()
}
