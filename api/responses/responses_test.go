package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
	"github.com/angelmondragon/releasehub-billing/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), logger.Nop(), w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "internal server error" {
		t.Fatalf("internal message leaked: %q", body.Error.Message)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteWebhookAck(t *testing.T) {
	w := httptest.NewRecorder()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	WriteWebhookAck(w, "evt_1", "invoice.paid", at)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body types.WebhookAck
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !body.Received || body.EventID != "evt_1" || body.EventType != "invoice.paid" || !body.ProcessedAt.Equal(at) {
		t.Fatalf("unexpected ack %+v", body)
	}
}

func TestWriteWebhookError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantEvent  bool
	}{
		{"signature", pkgerrors.New(pkgerrors.CodeSignature, "signature mismatch"), http.StatusBadRequest, false},
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "stripe event id required"), http.StatusBadRequest, false},
		{"configuration", pkgerrors.New(pkgerrors.CodeConfiguration, "price not mapped"), http.StatusInternalServerError, true},
		{"internal", pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("unknown status"), "map subscription status"), http.StatusInternalServerError, true},
		{"dependency", pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("conn reset"), "update account"), http.StatusInternalServerError, true},
		{"in flight", pkgerrors.New(pkgerrors.CodeInFlight, "event in flight"), http.StatusConflict, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteWebhookError(context.Background(), logger.Nop(), w, tt.err, "evt_9", "customer.subscription.updated")

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var body types.WebhookError
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error == "" {
				t.Fatal("expected error message")
			}
			if tt.wantEvent && (body.EventID != "evt_9" || body.EventType != "customer.subscription.updated") {
				t.Fatalf("expected event identity, got %+v", body)
			}
			if !tt.wantEvent && body.EventID != "" {
				t.Fatalf("unexpected event identity %+v", body)
			}
		})
	}
}
