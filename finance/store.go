/*
store.go - Persistence interface for engine records

PURPOSE:
  Defines the interface between the engine and the database. The engine
  itself is pure; the store holds the records the pure functions read
  and the few status fields the explicit transitions write.

KEY METHODS:
  SaveClosure:     Atomic write of a deal closure - the won deal, the
                   closure marker, the installment batch, and the
                   commission batch land together or not at all. A second
                   closure of the same deal fails with ErrAlreadyClosed
                   (edge-triggering).
  SwapCommission:  Optimistic check-then-set for commission status.
                   The write only lands if the current status still
                   matches the expected one; concurrent transitions
                   lose with ErrInvalidState instead of overwriting.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - finance/store/memory.go: In-memory for testing/dev

SEE ALSO:
  - service.go: The orchestration layer using this interface
*/
package finance

import "context"

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

type Store interface {
	// Deals (read model mirrored from the CRM)
	SaveDeal(ctx context.Context, deal Deal) error
	GetDeal(ctx context.Context, id DealID) (*Deal, error)

	// IsDealClosed reports whether a closure has already been recorded.
	IsDealClosed(ctx context.Context, id DealID) (bool, error)

	// SaveClosure atomically records the won deal, the closure marker, and
	// the generated installments and commissions. Returns ErrAlreadyClosed
	// if the deal's closure was already recorded; a rejected replay writes
	// nothing, not even the deal row.
	SaveClosure(ctx context.Context, deal Deal, installments []PaymentInstallment, commissions []CommissionRecord) error

	// Installments
	GetInstallment(ctx context.Context, id InstallmentID) (*PaymentInstallment, error)
	ListInstallments(ctx context.Context, filter InstallmentFilter) ([]PaymentInstallment, error)
	UpdateInstallment(ctx context.Context, ins PaymentInstallment) error

	// Commissions
	GetCommission(ctx context.Context, id CommissionID) (*CommissionRecord, error)
	ListCommissions(ctx context.Context, filter CommissionFilter) ([]CommissionRecord, error)

	// SwapCommission writes the record only if the stored status still
	// equals expect. Returns ErrNotFound for unknown ids and
	// ErrInvalidState when the precondition fails.
	SwapCommission(ctx context.Context, expect CommissionStatus, c CommissionRecord) error
}

// =============================================================================
// FILTERS
// =============================================================================

// InstallmentFilter narrows installment listings. Zero value = everything.
type InstallmentFilter struct {
	DealID *DealID
	Status *InstallmentStatus
}

// Matches reports whether an installment passes the filter. Store
// implementations without query pushdown use it directly.
func (f InstallmentFilter) Matches(ins PaymentInstallment) bool {
	if f.DealID != nil && ins.DealID != *f.DealID {
		return false
	}
	if f.Status != nil && ins.Status != *f.Status {
		return false
	}
	return true
}

// CommissionFilter narrows commission listings. Zero value = everything.
type CommissionFilter struct {
	DealID  *DealID
	Status  *CommissionStatus
	Trigger *TriggerEvent
}

func (f CommissionFilter) Matches(c CommissionRecord) bool {
	if f.DealID != nil && c.DealID != *f.DealID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Trigger != nil && c.Trigger != *f.Trigger {
		return false
	}
	return true
}
