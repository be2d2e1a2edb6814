package service

import (
	"context"
	"fmt"
	"sync"

	"ai-refinery-be/internal/pkg/logger"
	"ai-refinery-be/pkg/events"
	pktNats "ai-refinery-be/pkg/nats"
)

// IMonitorService tails the lifecycle event stream and records what the
// daemon has been doing: every session.created, session.expired and
// refine.converged event lands in the event log with its payload.
type IMonitorService interface {
	Start()
	Counts() map[string]int64
}

type monitorService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger

	mu     sync.Mutex
	counts map[string]int64
}

func NewMonitorService(sub *pktNats.Subscriber, log logger.ILogger) IMonitorService {
	return &monitorService{
		subscriber: sub,
		logger:     log,
		counts:     make(map[string]int64),
	}
}

// Start begins listening to the event bus with a durable consumer.
func (s *monitorService) Start() {
	err := s.subscriber.Subscribe("events.>", "refinery-monitor", s.handleEvent)
	if err != nil {
		s.logger.Error("MonitorService", "Failed to start event subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("MonitorService", "Monitor started, listening to events.>", nil)
}

func (s *monitorService) handleEvent(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	s.counts[event.EventType()]++
	seen := s.counts[event.EventType()]
	s.mu.Unlock()

	details := map[string]interface{}{"seen": seen}
	for k, v := range event.Payload() {
		details[k] = v
	}
	s.logger.Info("MonitorService", fmt.Sprintf("Event %s", event.EventType()), details)
	return nil
}

// Counts returns how many events of each type have been observed since
// the monitor started.
func (s *monitorService) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
