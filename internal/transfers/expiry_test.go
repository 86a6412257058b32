package transfers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(topic string, eventType string, entityID int, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func TestSweepPublishesPerExpiredRequest(t *testing.T) {
	repo := new(MockTransferRepository)
	publisher := &recordingPublisher{}
	sweeper := NewExpirySweeper(repo, publisher, zap.NewNop(), time.Minute)

	now := time.Now()
	repo.On("ExpirePendingRequests", now).Return([]int{1, 2, 3}, nil)

	sweeper.Sweep(now)

	assert.Len(t, publisher.events, 3)
	assert.Equal(t, "transfer.expired", publisher.events[0])
}

func TestSweepNothingOverdue(t *testing.T) {
	repo := new(MockTransferRepository)
	publisher := &recordingPublisher{}
	sweeper := NewExpirySweeper(repo, publisher, zap.NewNop(), time.Minute)

	now := time.Now()
	repo.On("ExpirePendingRequests", now).Return([]int{}, nil)

	sweeper.Sweep(now)

	assert.Empty(t, publisher.events)
}
