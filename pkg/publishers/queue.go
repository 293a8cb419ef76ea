package publishers

import (
	"context"
	"fmt"
)

type queueSender interface {
	Send(ctx context.Context, evt Event) error
}

type senderFactory func(ctx context.Context, qc *QueuePublisherConfig, log Logger) (queueSender, error)

// queueSenders maps a queue provider to the constructor of its sender.
var queueSenders = map[string]senderFactory{
	QueueProviderAWSSQS: func(ctx context.Context, qc *QueuePublisherConfig, log Logger) (queueSender, error) {
		return newAWSSQSSender(ctx, qc.AWS, log)
	},
	QueueProviderAWSSNS: func(ctx context.Context, qc *QueuePublisherConfig, log Logger) (queueSender, error) {
		return newAWSSNSSender(ctx, qc.SNS, log)
	},
	QueueProviderGCP: func(ctx context.Context, qc *QueuePublisherConfig, log Logger) (queueSender, error) {
		return newGCPPubSubSender(ctx, qc.GCP, log)
	},
}

// queuePublisher hands ingest outcome events to a broker.
type queuePublisher struct {
	id       string
	provider string
	sender   queueSender
}

func newQueuePublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	qc := cfg.Queue
	if qc == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	factory, ok := queueSenders[qc.Provider]
	if !ok {
		if qc.Provider == QueueProviderAzure {
			return nil, fmt.Errorf("publisher %q: %w: %q", cfg.ID, errNotImplemented, qc.Provider)
		}
		return nil, fmt.Errorf("publisher %q: queue provider %q is not supported", cfg.ID, qc.Provider)
	}

	sender, err := factory(ctx, qc, log)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	return &queuePublisher{id: cfg.ID, provider: qc.Provider, sender: sender}, nil
}

func (p *queuePublisher) ID() string   { return p.id }
func (p *queuePublisher) Type() string { return TypeQueue }

// Publish sends evt; the error names the provider and the article hash.
func (p *queuePublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("%s publish of %s (%s): %w", p.provider, evt.Fingerprint, evt.Outcome, err)
	}
	return nil
}
