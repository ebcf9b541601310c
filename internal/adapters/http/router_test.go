package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/viralforge/donor-ledger/internal/adapters/memory"
	"github.com/viralforge/donor-ledger/internal/application"
	"github.com/viralforge/donor-ledger/internal/domain"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// tokenVerifier treats the raw token as the caller's email.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, raw string) (ports.AuthClaims, error) {
	if !strings.Contains(raw, "@") {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return ports.AuthClaims{Subject: raw, Email: raw}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, ready func(context.Context) error) http.Handler {
	t.Helper()
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Campaigns:   repos.Campaigns,
		Donors:      repos.Donors,
		Outbox:      repos.Outbox,
		Transactor:  repos.Transactor,
		Idempotency: repos.Idempotency,
		Cache:       repos.Cache,
	})
	return NewRouter(NewHandler(svc, tokenVerifier{}, ready), RouterConfig{})
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, func(context.Context) error { return errors.New("mongo down") })
	if code, _ := do(t, h, http.MethodGet, "/healthz", "", nil); code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", code)
	}
	code, env := do(t, h, http.MethodGet, "/readyz", "", nil)
	if code != http.StatusServiceUnavailable || env.Code != "NOT_READY" {
		t.Fatalf("expected 503 NOT_READY, got %d %+v", code, env)
	}
}

func TestV1RequiresBearerToken(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, nil)
	code, env := do(t, h, http.MethodGet, "/v1/donations/recommended", "", nil)
	if code != http.StatusUnauthorized || env.Status != "error" {
		t.Fatalf("expected 401 error envelope, got %d %+v", code, env)
	}
	if code, _ := do(t, h, http.MethodGet, "/v1/donations/recommended", "not-an-email", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for rejected token, got %d", code)
	}
}

func TestContributionAndRefundOverHTTP(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, nil)
	owner := "owner@example.com"
	donor := "donor@example.com"

	code, env := do(t, h, http.MethodPost, "/v1/donations", owner, map[string]any{
		"petName":     "Milo",
		"maxDonation": 100,
	})
	if code != http.StatusCreated {
		t.Fatalf("create campaign: %d %+v", code, env)
	}
	var campaign application.CampaignResponse
	if err := json.Unmarshal(env.Data, &campaign); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}

	code, env = do(t, h, http.MethodPost, "/v1/donors", donor, map[string]any{
		"donationId":    campaign.CampaignID,
		"email":         donor,
		"amount":        100,
		"transactionId": "pi_1",
		"paymentMethod": "card",
	})
	if code != http.StatusCreated {
		t.Fatalf("record contribution: %d %+v", code, env)
	}
	var contribution application.ContributionResult
	if err := json.Unmarshal(env.Data, &contribution); err != nil {
		t.Fatalf("decode contribution: %v", err)
	}
	if contribution.NewStatus != domain.CampaignStatusDonated {
		t.Fatalf("expected donated, got %q", contribution.NewStatus)
	}

	code, env = do(t, h, http.MethodPost, "/v1/donors/by-ids", "stranger@example.com", map[string]any{
		"ids": []string{contribution.DonorID},
	})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign owner, got %d %+v", code, env)
	}

	code, env = do(t, h, http.MethodDelete, "/v1/donors/"+contribution.DonorID, owner, nil)
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 when owner refunds donor, got %d %+v", code, env)
	}
	code, env = do(t, h, http.MethodDelete, "/v1/donors/"+contribution.DonorID, donor, nil)
	if code != http.StatusOK {
		t.Fatalf("refund: %d %+v", code, env)
	}

	code, env = do(t, h, http.MethodGet, "/v1/donations/"+campaign.CampaignID, owner, nil)
	if code != http.StatusOK {
		t.Fatalf("get campaign: %d %+v", code, env)
	}
	if err := json.Unmarshal(env.Data, &campaign); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}
	if campaign.CollectedAmount != 0 || len(campaign.DonorIDs) != 0 {
		t.Fatalf("refund not reflected: %+v", campaign)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, nil)
	code, env := do(t, h, http.MethodPost, "/v1/payment-intents", "donor@example.com", map[string]any{
		"amountInCents": 100,
		"currency":      "eur",
	})
	if code != http.StatusBadRequest || env.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 400 VALIDATION_ERROR, got %d %+v", code, env)
	}
}

func TestPaymentIntentWithoutProcessorIsUnavailable(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, nil)
	code, env := do(t, h, http.MethodPost, "/v1/payment-intents", "donor@example.com", map[string]any{
		"amountInCents": 100,
	})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %+v", code, env)
	}
}

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrIdempotencyConflict, http.StatusConflict},
		{domain.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{domain.ErrDependencyUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _, _ := mapDomainError(tc.err); got != tc.want {
			t.Fatalf("mapDomainError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestIdempotencyConflictKeepsReason(t *testing.T) {
	t.Parallel()

	for _, reason := range []string{"request still in progress", "key reused with a different request"} {
		status, code, msg := mapDomainError(fmt.Errorf("%w: %s", domain.ErrIdempotencyConflict, reason))
		if status != http.StatusConflict || code != "IDEMPOTENCY_CONFLICT" {
			t.Fatalf("unexpected mapping %d %s", status, code)
		}
		if !strings.Contains(msg, reason) {
			t.Fatalf("expected message to carry %q, got %q", reason, msg)
		}
	}
}

type countingObserver struct{ routes []string }

func (o *countingObserver) ObserveHTTPRequest(route, _ string, _ int, _ time.Duration) {
	o.routes = append(o.routes, route)
}

func TestObserverReceivesRoutePattern(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Campaigns: repos.Campaigns,
		Donors:    repos.Donors,
		Outbox:    repos.Outbox,
	})
	obs := &countingObserver{}
	h := NewRouter(NewHandler(svc, tokenVerifier{}, nil), RouterConfig{Observer: obs})
	do(t, h, http.MethodGet, "/v1/donations/"+"00000000-0000-0000-0000-000000000000", "a@example.com", nil)
	if len(obs.routes) != 1 || obs.routes[0] != "/v1/donations/{id}" {
		t.Fatalf("unexpected observed routes %v", obs.routes)
	}
}
