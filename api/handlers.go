/*
handlers.go - HTTP API handlers for the finance engine

PURPOSE:
  Exposes the payment-plan and commission engine via REST. Handles
  HTTP request/response, JSON serialization, and delegates to the
  finance service.

ENDPOINTS:
  Deals:
    POST   /api/deals/{id}/close          Process a deal closure
    GET    /api/deals/{id}/installments   Installment schedule
    GET    /api/deals/{id}/commissions    Commission records

  Installments:
    POST   /api/installments/{id}/payments  Record full/partial payment

  Commissions:
    GET    /api/commissions               List (filter by deal/status)
    POST   /api/commissions/{id}/approve  pending -> approved
    POST   /api/commissions/{id}/pay      approved -> paid
    POST   /api/commissions/{id}/cancel   pending/approved -> cancelled

  Metrics:
    GET    /api/metrics                   Aggregated metrics
    POST   /api/admin/refresh             Re-resolve statuses as of now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (negative values, malformed dates)
  - 404: Unknown record id
  - 409: Illegal status transition, repeated deal closure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/expocrm/finance-engine/factory"
	"github.com/expocrm/finance-engine/finance"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *finance.Service

	// Policy configs per deal type; "" maps to the default.
	configs map[string]*factory.Config
}

// NewHandler creates a new handler backed by the given service and
// default policy config.
func NewHandler(service *finance.Service, defaultConfig *factory.Config) *Handler {
	h := &Handler{
		Service: service,
		configs: make(map[string]*factory.Config),
	}
	h.configs[""] = defaultConfig
	if defaultConfig != nil {
		h.configs[defaultConfig.ID] = defaultConfig
	}
	return h
}

// RegisterConfig adds a policy config for a deal type.
func (h *Handler) RegisterConfig(cfg *factory.Config) {
	h.configs[cfg.ID] = cfg
}

func (h *Handler) config(policyID string) (*factory.Config, bool) {
	cfg, ok := h.configs[policyID]
	return cfg, ok && cfg != nil
}

// =============================================================================
// DEAL HANDLERS
// =============================================================================

// CloseDeal processes a deal's transition into won.
// POST /api/deals/{id}/close
func (h *Handler) CloseDeal(w http.ResponseWriter, r *http.Request) {
	dealID := finance.DealID(chi.URLParam(r, "id"))

	var req CloseDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Value == "" {
		writeError(w, http.StatusBadRequest, "value is required", nil)
		return
	}
	value, err := finance.ParseMoney(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid value (use a decimal string)", err)
		return
	}

	closeDate := finance.Today()
	if req.CloseDate != "" {
		var err error
		closeDate, err = finance.ParseDate(req.CloseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid close_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	fromStage := finance.DealStage(req.FromStage)
	if fromStage == "" {
		fromStage = finance.StageNegotiation
	}

	cfg, ok := h.config(req.PolicyID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown policy_id", nil)
		return
	}

	deal := finance.Deal{
		ID:       dealID,
		Title:    req.Title,
		Value:    value,
		Stage:    fromStage,
		ClientID: finance.ClientID(req.ClientID),
	}
	transition := finance.StageTransition{DealID: dealID, From: fromStage, To: finance.StageWon}

	closure, err := h.Service.CloseDeal(r.Context(), deal, transition, closeDate,
		cfg.Split, cfg.Beneficiaries, cfg.Commission)
	if err != nil {
		writeEngineError(w, "Failed to close deal", err)
		return
	}

	writeJSON(w, http.StatusCreated, ClosureDTO{
		Deal:         toDealDTO(closure.Deal),
		Installments: toInstallmentDTOs(closure.Installments),
		Commissions:  toCommissionDTOs(closure.Commissions),
	})
}

// ListDealInstallments returns a deal's installment schedule.
// GET /api/deals/{id}/installments
func (h *Handler) ListDealInstallments(w http.ResponseWriter, r *http.Request) {
	dealID := finance.DealID(chi.URLParam(r, "id"))

	installments, err := h.Service.ListInstallments(r.Context(), finance.InstallmentFilter{DealID: &dealID})
	if err != nil {
		writeEngineError(w, "Failed to list installments", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// ListDealCommissions returns a deal's commission records.
// GET /api/deals/{id}/commissions
func (h *Handler) ListDealCommissions(w http.ResponseWriter, r *http.Request) {
	dealID := finance.DealID(chi.URLParam(r, "id"))

	commissions, err := h.Service.ListCommissions(r.Context(), finance.CommissionFilter{DealID: &dealID})
	if err != nil {
		writeEngineError(w, "Failed to list commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(commissions))
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// RecordPayment records a full or partial payment on an installment.
// POST /api/installments/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := finance.InstallmentID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		ins *finance.PaymentInstallment
		err error
	)
	if req.AmountPaid != "" {
		amount, perr := finance.ParseMoney(req.AmountPaid)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount_paid (use a decimal string)", perr)
			return
		}
		ins, err = h.Service.RecordPartialPayment(r.Context(), id, amount)
	} else {
		paidDate := finance.Today()
		if req.PaidDate != "" {
			paidDate, err = finance.ParseDate(req.PaidDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid paid_date format (use YYYY-MM-DD)", err)
				return
			}
		}
		ins, err = h.Service.RecordPayment(r.Context(), id, finance.Paid(paidDate, req.Method, req.Reference))
	}
	if err != nil {
		writeEngineError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toInstallmentDTO(*ins))
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ListCommissions returns commissions, optionally filtered.
// GET /api/commissions?deal_id=&status=
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	var filter finance.CommissionFilter
	if v := r.URL.Query().Get("deal_id"); v != "" {
		dealID := finance.DealID(v)
		filter.DealID = &dealID
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := finance.CommissionStatus(v)
		filter.Status = &status
	}

	commissions, err := h.Service.ListCommissions(r.Context(), filter)
	if err != nil {
		writeEngineError(w, "Failed to list commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(commissions))
}

// ApproveCommission moves a pending commission to approved.
// POST /api/commissions/{id}/approve
func (h *Handler) ApproveCommission(w http.ResponseWriter, r *http.Request) {
	h.transitionCommission(w, r, h.Service.ApproveCommission)
}

// PayCommission moves an approved commission to paid.
// POST /api/commissions/{id}/pay
func (h *Handler) PayCommission(w http.ResponseWriter, r *http.Request) {
	h.transitionCommission(w, r, h.Service.MarkCommissionPaid)
}

// CancelCommission cancels a pending or approved commission.
// POST /api/commissions/{id}/cancel
func (h *Handler) CancelCommission(w http.ResponseWriter, r *http.Request) {
	h.transitionCommission(w, r, h.Service.CancelCommission)
}

func (h *Handler) transitionCommission(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id finance.CommissionID) (*finance.CommissionRecord, error),
) {
	id := finance.CommissionID(chi.URLParam(r, "id"))

	c, err := op(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to transition commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(*c))
}

// =============================================================================
// METRICS HANDLERS
// =============================================================================

// GetMetrics returns aggregated financial metrics.
// GET /api/metrics?deal_id=
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	var dealID *finance.DealID
	if v := r.URL.Query().Get("deal_id"); v != "" {
		id := finance.DealID(v)
		dealID = &id
	}

	metrics, err := h.Service.Metrics(r.Context(), dealID)
	if err != nil {
		writeEngineError(w, "Failed to compute metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, toMetricsDTO(metrics))
}

// RefreshStatuses re-resolves installment statuses as of a date.
// POST /api/admin/refresh
func (h *Handler) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	// An empty body means "as of today"; a body that is present must parse.
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	now := finance.Today()
	if req.Now != "" {
		var err error
		now, err = finance.ParseDate(req.Now)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid now format (use YYYY-MM-DD)", err)
			return
		}
	}

	overdue, err := h.Service.RefreshStatuses(r.Context(), now)
	if err != nil {
		writeEngineError(w, "Failed to refresh statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResultDTO{NewlyOverdue: toInstallmentDTOs(overdue)})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine error kinds onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, finance.ErrInvalidState), errors.Is(err, finance.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, finance.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
