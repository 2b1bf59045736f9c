package responses

import (
	"context"
	"net/http"
	"time"

	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/types"
)

// WriteWebhookAck writes a 200 acknowledgement.
func WriteWebhookAck(w http.ResponseWriter, eventID, eventType string, processedAt time.Time) {
	writeJSON(w, http.StatusOK, types.WebhookAck{
		Received:    true,
		EventType:   eventType,
		EventID:     eventID,
		ProcessedAt: processedAt.UTC(),
	})
}

// WriteWebhookError maps err to the processor-facing status. Signature and payload
// failures carry no event identity; every other failure echoes the event so the
// delivery can be traced from the processor dashboard.
func WriteWebhookError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, eventID, eventType string) {
	typed := classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.WebhookError{Error: publicMessage(typed, meta)}
	switch typed.Code() {
	case pkgerrors.CodeSignature, pkgerrors.CodeValidation:
	default:
		body.EventID = eventID
		body.EventType = eventType
	}

	status := meta.HTTPStatus
	if status == http.StatusServiceUnavailable {
		// the processor only distinguishes 2xx, 4xx and 5xx
		status = http.StatusInternalServerError
	}

	logError(ctx, logg, err, typed, "webhook.error")
	writeJSON(w, status, body)
}
