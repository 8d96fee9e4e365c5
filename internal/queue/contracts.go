package queue

import (
	"context"

	"github.com/talentdesk/cv-analysis-back/internal/domain"
)

// Producer sends analysis jobs to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives analysis jobs and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}
