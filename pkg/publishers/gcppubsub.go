package publishers

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// gcpPubSubSender publishes outcome events to a Pub/Sub topic.
type gcpPubSubSender struct {
	topic *pubsub.Topic
	log   Logger
}

func newGCPPubSubSender(ctx context.Context, cfg *GCPQueueConfig, log Logger) (queueSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gcp pubsub configuration is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.Topic)
	// Events of one source keep their order.
	topic.EnableMessageOrdering = true

	return &gcpPubSubSender{topic: topic, log: ensureLogger(log)}, nil
}

func (s *gcpPubSubSender) Send(ctx context.Context, evt Event) error {
	payload, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	res := s.topic.Publish(ctx, &pubsub.Message{
		Data:        payload,
		Attributes:  evt.Attributes(),
		OrderingKey: evt.Source,
	})
	msgID, err := res.Get(ctx)
	if err != nil {
		s.topic.ResumePublish(evt.Source)
		s.log.ErrorObj("pubsub publish failed", "publisher_gcp_pubsub_error", map[string]any{
			"hash":  evt.Fingerprint,
			"error": err.Error(),
		})
		return fmt.Errorf("send message to pubsub: %w", err)
	}

	s.log.DebugObj("pubsub delivered event", "publisher_gcp_pubsub_delivery", map[string]any{
		"hash":       evt.Fingerprint,
		"message_id": msgID,
	})
	return nil
}
