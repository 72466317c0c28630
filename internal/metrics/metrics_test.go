package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
)

var _ service.MetricsRecorder = (*Recorder)(nil)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.MovementCommitted(domain.KindPurchase, 3*time.Millisecond)
	r.MovementCommitted(domain.KindPurchase, 5*time.Millisecond)
	r.MovementRejected(domain.KindTransfer, "INSUFFICIENT_STOCK")
	r.MovementReplayed(domain.KindPurchase)
	r.CommitRetried(domain.KindTransfer)

	if got := testutil.ToFloat64(r.committed.WithLabelValues("PURCHASE")); got != 2 {
		t.Errorf("expected 2 commits, got %v", got)
	}
	if got := testutil.ToFloat64(r.rejected.WithLabelValues("TRANSFER", "INSUFFICIENT_STOCK")); got != 1 {
		t.Errorf("expected 1 rejection, got %v", got)
	}
	if got := testutil.ToFloat64(r.replayed.WithLabelValues("PURCHASE")); got != 1 {
		t.Errorf("expected 1 replay, got %v", got)
	}
	if got := testutil.ToFloat64(r.retried.WithLabelValues("TRANSFER")); got != 1 {
		t.Errorf("expected 1 retry, got %v", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.MovementCommitted(domain.KindExpenditure, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `ledger_movements_committed_total{kind="EXPENDITURE"} 1`) {
		t.Errorf("expected committed series in output:\n%s", body)
	}
}
