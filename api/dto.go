/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract,
  allowing field renaming without breaking clients and API-specific
  validation.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/expocrm/finance-engine/finance"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CloseDealRequest is the request to process a deal closure.
type CloseDealRequest struct {
	Title     string `json:"title"`
	Value     string `json:"value"` // decimal string
	ClientID  string `json:"client_id"`
	FromStage string `json:"from_stage"`
	CloseDate string `json:"close_date"` // YYYY-MM-DD; defaults to today
	PolicyID  string `json:"policy_id,omitempty"`
}

// ClosureDTO is the response after a successful closure.
type ClosureDTO struct {
	Deal         DealDTO          `json:"deal"`
	Installments []InstallmentDTO `json:"installments"`
	Commissions  []CommissionDTO  `json:"commissions"`
}

// DealDTO represents the deal read model.
type DealDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Value     string `json:"value"`
	Stage     string `json:"stage"`
	ClientID  string `json:"client_id"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// InstallmentDTO represents a payment installment.
type InstallmentDTO struct {
	ID                  string `json:"id"`
	DealID              string `json:"deal_id"`
	ClientID            string `json:"client_id"`
	Amount              string `json:"amount"`
	DueDate             string `json:"due_date"`
	Status              string `json:"status"`
	PaidDate            string `json:"paid_date,omitempty"`
	Kind                string `json:"kind"`
	Sequence            int    `json:"sequence"`
	Total               int    `json:"total"`
	PaymentMethod       string `json:"payment_method,omitempty"`
	PaymentReference    string `json:"payment_reference,omitempty"`
	Notes               string `json:"notes,omitempty"`
	AmountPaid          string `json:"amount_paid,omitempty"`
	CommissionTriggered bool   `json:"commission_triggered"`
}

// RecordPaymentRequest records a full or partial payment on an installment.
type RecordPaymentRequest struct {
	PaidDate  string `json:"paid_date,omitempty"` // YYYY-MM-DD; defaults to today
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`

	// AmountPaid, when set, records a partial payment instead.
	AmountPaid string `json:"amount_paid,omitempty"`
}

// CommissionDTO represents a commission record.
type CommissionDTO struct {
	ID              string `json:"id"`
	DealID          string `json:"deal_id"`
	BeneficiaryID   string `json:"beneficiary_id"`
	BeneficiaryName string `json:"beneficiary_name"`
	Role            string `json:"role"`
	Percent         string `json:"percent"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	Trigger         string `json:"trigger"`
	CreatedAt       string `json:"created_at,omitempty"`
	ApprovedAt      string `json:"approved_at,omitempty"`
	PaidAt          string `json:"paid_at,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// MetricsDTO represents the aggregated financial metrics.
type MetricsDTO struct {
	TotalRevenue      string `json:"total_revenue"`
	PaymentsPending   string `json:"payments_pending"`
	PaymentsOverdue   string `json:"payments_overdue"`
	CommissionPending string `json:"commission_pending"`
	CommissionPaid    string `json:"commission_paid"`
	CollectionRate    string `json:"collection_rate"`
	AvgPaymentDays    string `json:"avg_payment_days"`
}

// RefreshRequest triggers a status refresh as of a given date.
type RefreshRequest struct {
	Now string `json:"now,omitempty"` // YYYY-MM-DD; defaults to today
}

// RefreshResultDTO reports installments that became overdue.
type RefreshResultDTO struct {
	NewlyOverdue []InstallmentDTO `json:"newly_overdue"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDealDTO(d finance.Deal) DealDTO {
	return DealDTO{
		ID:        string(d.ID),
		Title:     d.Title,
		Value:     d.Value.String(),
		Stage:     string(d.Stage),
		ClientID:  string(d.ClientID),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}

func toInstallmentDTO(ins finance.PaymentInstallment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:                  string(ins.ID),
		DealID:              string(ins.DealID),
		ClientID:            string(ins.ClientID),
		Amount:              ins.Amount.String(),
		DueDate:             ins.DueDate.String(),
		Status:              string(ins.Status),
		Kind:                string(ins.Kind),
		Sequence:            ins.Sequence,
		Total:               ins.Total,
		PaymentMethod:       ins.PaymentMethod,
		PaymentReference:    ins.PaymentReference,
		Notes:               ins.Notes,
		CommissionTriggered: ins.CommissionTriggered,
	}
	if ins.PaidDate != nil {
		dto.PaidDate = ins.PaidDate.String()
	}
	if !ins.AmountPaid.IsZero() {
		dto.AmountPaid = ins.AmountPaid.String()
	}
	return dto
}

func toInstallmentDTOs(installments []finance.PaymentInstallment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i, ins := range installments {
		dtos[i] = toInstallmentDTO(ins)
	}
	return dtos
}

func toCommissionDTO(c finance.CommissionRecord) CommissionDTO {
	dto := CommissionDTO{
		ID:              string(c.ID),
		DealID:          string(c.DealID),
		BeneficiaryID:   string(c.BeneficiaryID),
		BeneficiaryName: c.BeneficiaryName,
		Role:            c.Role,
		Percent:         c.Percent.String(),
		Amount:          c.Amount.String(),
		Status:          string(c.Status),
		Trigger:         string(c.Trigger),
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		Notes:           c.Notes,
	}
	if c.ApprovedAt != nil {
		dto.ApprovedAt = c.ApprovedAt.Format(time.RFC3339)
	}
	if c.PaidAt != nil {
		dto.PaidAt = c.PaidAt.Format(time.RFC3339)
	}
	return dto
}

func toCommissionDTOs(commissions []finance.CommissionRecord) []CommissionDTO {
	dtos := make([]CommissionDTO, len(commissions))
	for i, c := range commissions {
		dtos[i] = toCommissionDTO(c)
	}
	return dtos
}

func toMetricsDTO(m finance.FinancialMetrics) MetricsDTO {
	return MetricsDTO{
		TotalRevenue:      m.TotalRevenue.String(),
		PaymentsPending:   m.PaymentsPending.String(),
		PaymentsOverdue:   m.PaymentsOverdue.String(),
		CommissionPending: m.CommissionPending.String(),
		CommissionPaid:    m.CommissionPaid.String(),
		CollectionRate:    m.CollectionRate.StringFixed(4),
		AvgPaymentDays:    m.AvgPaymentDays.StringFixed(2),
	}
}
