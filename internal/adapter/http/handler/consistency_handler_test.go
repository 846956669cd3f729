package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/slotledger/internal/adapter/http/dto"
	"github.com/iho/slotledger/internal/usecase"
)

type stubReconciler struct {
	report *usecase.ReconciliationReport
	err    error
}

func (s stubReconciler) GenerateReconciliationReport(context.Context) (*usecase.ReconciliationReport, error) {
	return s.report, s.err
}

func TestConsistencyHandler(t *testing.T) {
	tests := []struct {
		name       string
		reconciler stubReconciler
		wantStatus int
	}{
		{
			name:       "consistent",
			reconciler: stubReconciler{report: &usecase.ReconciliationReport{TotalAccounts: 5, ReconciledAccounts: 5}},
			wantStatus: http.StatusOK,
		},
		{
			name: "inconsistent",
			reconciler: stubReconciler{report: &usecase.ReconciliationReport{
				TotalAccounts:      5,
				ReconciledAccounts: 4,
				Discrepancies:      []*usecase.ReconciliationResult{{AccountID: 3}},
			}},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "error",
			reconciler: stubReconciler{err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewConsistencyHandler(tt.reconciler)
			rr := httptest.NewRecorder()
			h.CheckConsistency(rr, httptest.NewRequest(http.MethodGet, "/ledger/consistency", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.reconciler.err != nil {
				return
			}

			var resp dto.ConsistencyResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Consistent != (tt.wantStatus == http.StatusOK) {
				t.Fatalf("unexpected consistent flag: %+v", resp)
			}
		})
	}
}
