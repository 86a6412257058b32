package transfers

import (
	"context"
	"time"

	"github.com/cpusmsng/vercajch/internal/events"

	"go.uber.org/zap"
)

// ExpirySweeper periodically moves overdue pending requests to expired.
// The transition is the same conditional update the rest of the engine
// uses, so a request that got accepted or cancelled between ticks is
// left alone.
type ExpirySweeper struct {
	repo      TransferRepository
	publisher events.Publisher
	log       *zap.Logger
	interval  time.Duration
}

func NewExpirySweeper(repo TransferRepository, publisher events.Publisher, log *zap.Logger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		repo:      repo,
		publisher: publisher,
		log:       log,
		interval:  interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep expires everything overdue as of now and publishes one event per
// expired request.
func (s *ExpirySweeper) Sweep(now time.Time) {
	ids, err := s.repo.ExpirePendingRequests(now)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	s.log.Info("expired transfer requests", zap.Int("count", len(ids)))
	for _, id := range ids {
		s.publisher.Publish(events.TopicTransfers, events.TransferExpired, id, nil)
	}
}
