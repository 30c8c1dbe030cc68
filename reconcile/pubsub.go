package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
)

func runTopicName() string {
	if v := strings.TrimSpace(os.Getenv("RECONCILIATION_RUN_TOPIC")); v != "" {
		return v
	}
	return "reconciliation-run"
}

// PublishRunRequest enqueues an asynchronous reconciliation run for an event.
// The scheduler and the admin backend both publish here; this service consumes
// via its push subscription.
func PublishRunRequest(ctx context.Context, eventId string, triggeredBy string) (string, error) {
	client, err := config.GetClient(ctx)
	if err != nil {
		return "", err
	}
	topic, err := config.CreateTopicIfNotExists(client, runTopicName())
	if err != nil {
		return "", err
	}

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	payload := RunPubSubPayload{
		EventId:       eventId,
		TriggeredBy:   triggeredBy,
		CorrelationId: cid,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	return res.Get(ctx)
}
