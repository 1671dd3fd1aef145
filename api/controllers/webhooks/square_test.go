package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	squarewebhook "github.com/gaardshagen/farmbox-backend/internal/webhooks/square"
)

const testSigningSecret = "wh-secret"

type stubWebhookService struct {
	handled []string
	err     error
}

func (s *stubWebhookService) HandleEvent(_ context.Context, event *squarewebhook.WebhookEvent) error {
	s.handled = append(s.handled, event.EventID)
	return s.err
}

type stubGuard struct {
	seen    map[string]bool
	deleted []string
}

func (s *stubGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[eventID] {
		return true, nil
	}
	s.seen[eventID] = true
	return false, nil
}

func (s *stubGuard) Delete(_ context.Context, eventID string) error {
	s.deleted = append(s.deleted, eventID)
	delete(s.seen, eventID)
	return nil
}

type stubSquareClient struct{}

func (stubSquareClient) SigningSecret() string { return testSigningSecret }

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func postEvent(handler http.HandlerFunc, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/square", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Square-Signature", signature)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestSquareWebhookProcessesSignedEvent(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{}
	handler := SquareWebhook(svc, stubSquareClient{}, guard, nil)

	body := `{"event_id":"evt-1","type":"payment.updated","data":{"id":"pay-1"}}`
	resp := postEvent(handler, body, signBody(body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.handled) != 1 || svc.handled[0] != "evt-1" {
		t.Fatalf("event not handled: %v", svc.handled)
	}
}

func TestSquareWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	handler := SquareWebhook(svc, stubSquareClient{}, &stubGuard{}, nil)

	body := `{"event_id":"evt-2","type":"payment.updated","data":{"id":"pay-2"}}`
	resp := postEvent(handler, body, signBody(body+"tampered"))

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if len(svc.handled) != 0 {
		t.Fatalf("tampered event must not be handled")
	}
}

func TestSquareWebhookRequiresSignatureHeader(t *testing.T) {
	handler := SquareWebhook(&stubWebhookService{}, stubSquareClient{}, &stubGuard{}, nil)

	body := `{"event_id":"evt-3","type":"payment.updated","data":{"id":"pay-3"}}`
	resp := postEvent(handler, body, "")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSquareWebhookDuplicateEventIsAcknowledgedOnce(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{}
	handler := SquareWebhook(svc, stubSquareClient{}, guard, nil)

	body := `{"event_id":"evt-4","type":"payment.updated","data":{"id":"pay-4"}}`
	sig := signBody(body)

	first := postEvent(handler, body, sig)
	second := postEvent(handler, body, sig)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200/200 got %d/%d", first.Code, second.Code)
	}
	if len(svc.handled) != 1 {
		t.Fatalf("duplicate event must be handled once, got %d", len(svc.handled))
	}
}

func TestSquareWebhookFailureReleasesIdempotencyMark(t *testing.T) {
	svc := &stubWebhookService{err: errors.New("ledger unavailable")}
	guard := &stubGuard{}
	handler := SquareWebhook(svc, stubSquareClient{}, guard, nil)

	body := `{"event_id":"evt-5","type":"payment.updated","data":{"id":"pay-5"}}`
	sig := signBody(body)

	resp := postEvent(handler, body, sig)
	if resp.Code == http.StatusOK {
		t.Fatalf("expected error status, got 200")
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "evt-5" {
		t.Fatalf("failed event must release its mark: %v", guard.deleted)
	}

	// The provider retry should go through once the mark is gone.
	svc.err = nil
	retry := postEvent(handler, body, sig)
	if retry.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", retry.Code)
	}
	if len(svc.handled) != 2 {
		t.Fatalf("retry must reach the service, got %d calls", len(svc.handled))
	}
}
