package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	talentchain "github.com/kbunet/talentchain"
)

const eventChannel = "talentchain:events"

// EventService fans issuance/verification events out over Redis pub/sub.
type EventService struct {
	rdb *redis.Client
}

func NewEventService(redisClient *redis.Client) *EventService {
	return &EventService{
		rdb: redisClient,
	}
}

func (s *EventService) Publish(ctx context.Context, event talentchain.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, eventChannel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime subscribes to the event channel and forwards events whose DIDs
// intersect the most recent filter received on input. An empty filter
// forwards everything. Returns when ctx is done or input closes.
func (s *EventService) Realtime(ctx context.Context, input <-chan []string, output chan<- talentchain.Event) {
	pubsub := s.rdb.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var filter map[string]struct{}

	for {
		select {
		case <-ctx.Done():
			return
		case dids, ok := <-input:
			if !ok {
				return
			}
			filter = make(map[string]struct{}, len(dids))
			for _, did := range dids {
				filter[did] = struct{}{}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event talentchain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(
					ctx, "Failed to decode event",
					slog.String("error", err.Error()),
					slog.String("module", "event"),
				)
				continue
			}

			if len(filter) > 0 && !matchesFilter(event, filter) {
				continue
			}

			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func matchesFilter(event talentchain.Event, filter map[string]struct{}) bool {
	for _, did := range event.Dids {
		if _, ok := filter[did]; ok {
			return true
		}
	}
	return false
}
