package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const locationFeedChannel = "ride:location:updates"

// LocationUpdate is one live position report for a ride in progress.
type LocationUpdate struct {
	RideID   string  `json:"ride_id"`
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// LocationFeed fans driver positions out to ride trackers over Redis
// pub/sub, so every server instance sees updates regardless of which one
// handled the driver's report.
type LocationFeed interface {
	Publish(ctx context.Context, update LocationUpdate) error
	Subscribe(ctx context.Context) (<-chan LocationUpdate, func())
}

type locationFeed struct {
	redis *redis.Client
}

func NewLocationFeed(redisClient *redis.Client) LocationFeed {
	return &locationFeed{redis: redisClient}
}

func (f *locationFeed) Publish(ctx context.Context, update LocationUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return f.redis.Publish(ctx, locationFeedChannel, data).Err()
}

// Subscribe returns a channel of updates and a cancel func that tears the
// subscription down. Malformed payloads are skipped.
func (f *locationFeed) Subscribe(ctx context.Context) (<-chan LocationUpdate, func()) {
	pubsub := f.redis.Subscribe(ctx, locationFeedChannel)
	out := make(chan LocationUpdate, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var update LocationUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				continue
			}
			select {
			case out <- update:
			default:
			}
		}
	}()

	return out, func() { pubsub.Close() }
}
