package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/viralforge/donor-ledger/internal/application"
)

type stubReconciler struct {
	summary application.ReconcileSummary
	err     error
	calls   int
}

func (s *stubReconciler) ReconcileAll(context.Context) (application.ReconcileSummary, error) {
	s.calls++
	return s.summary, s.err
}

func TestReconcileWorkerLogsOutcome(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	stub := &stubReconciler{summary: application.ReconcileSummary{Checked: 4, Repaired: 1}}
	worker := NewReconcileWorker(logger, stub, 0)

	worker.runOnce(context.Background())
	if stub.calls != 1 || !strings.Contains(buf.String(), `"outcome":"success"`) || !strings.Contains(buf.String(), `"repaired":1`) {
		t.Fatalf("unexpected log output %s", buf.String())
	}

	buf.Reset()
	stub.err = errors.New("campaign x: storage down")
	worker.runOnce(context.Background())
	if !strings.Contains(buf.String(), `"outcome":"failure"`) {
		t.Fatalf("expected failure log, got %s", buf.String())
	}
}
