package handler

import (
	"context"
	"net/http"

	"github.com/iho/slotledger/internal/adapter/http/dto"
	"github.com/iho/slotledger/internal/usecase"
)

// Reconciler produces a reconciliation report of the whole ledger.
type Reconciler interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// ConsistencyHandler handles ledger-wide consistency checks.
type ConsistencyHandler struct {
	reconciler Reconciler
}

// NewConsistencyHandler creates a new ConsistencyHandler.
func NewConsistencyHandler(reconciler Reconciler) *ConsistencyHandler {
	return &ConsistencyHandler{reconciler: reconciler}
}

// CheckConsistency replays every account log against its balance.
func (h *ConsistencyHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check consistency", err.Error())
		return
	}

	resp := dto.ConsistencyFromReport(report)
	if !resp.Consistent {
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
