package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IPersisterService drains the snapshot topic into the snapshot repository.
type IPersisterService interface {
	Consume(ctx context.Context) error
}

type persisterService struct {
	pubSub       *gochannel.GoChannel
	topicName    string
	snapshotRepo contract.SnapshotRepository
}

func NewPersisterService(
	pubSub *gochannel.GoChannel,
	topicName string,
	snapshotRepo contract.SnapshotRepository,
) IPersisterService {
	return &persisterService{
		pubSub:       pubSub,
		topicName:    topicName,
		snapshotRepo: snapshotRepo,
	}
}

func (ps *persisterService) Consume(ctx context.Context) error {
	messages, err := ps.pubSub.Subscribe(ctx, ps.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ps.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ps *persisterService) processMessage(ctx context.Context, msg *message.Message) {
	var snapshot model.SessionSnapshot
	if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
		log.Printf("[ERROR] Failed to unmarshal session snapshot: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if snapshot.SessionID == "" {
		log.Printf("[ERROR] Snapshot message missing session id, dropping")
		msg.Ack()
		return
	}

	if err := ps.snapshotRepo.Save(ctx, &snapshot); err != nil {
		log.Printf("[ERROR] Failed to persist snapshot for session %s: %v", snapshot.SessionID, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	msg.Ack()
}
