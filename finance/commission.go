/*
commission.go - Commission rule engine

PURPOSE:
  Derives commission records when a deal first reaches the won stage,
  and guards the strict status transitions those records go through
  afterwards (pending -> approved -> paid, cancel from pending or
  approved).

EDGE-TRIGGERING:
  Generation must fire exactly once per deal, on the stage transition
  into won - not on every read of a won deal. The engine cannot see
  prior state, so the caller hands it an explicit StageTransition
  event; the engine validates the edge and stays pure. The service
  layer additionally records closure so a replayed event is rejected.

BENEFICIARY TABLE:
  External configuration: an ordered list of {role, percent, trigger}
  rules, e.g. Sales Manager 5% on deal_closed, Account Manager 2% on
  payment_received. One commission record per rule.

AUTO-APPROVAL:
  Whether deal_closed commissions start life approved instead of
  pending is policy, not a built-in assumption.

SEE ALSO:
  - service.go: Edge-tracking, persistence, approve/markPaid with
    optimistic check-then-set
*/
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BENEFICIARY TABLE - Who earns what, on which event
// =============================================================================

// BeneficiaryRule configures one commission per closed deal.
type BeneficiaryRule struct {
	BeneficiaryID   BeneficiaryID
	BeneficiaryName string
	Role            string
	Percent         decimal.Decimal // 0-100
	Trigger         TriggerEvent
}

type BeneficiaryTable []BeneficiaryRule

func (t BeneficiaryTable) Validate() error {
	hundred := decimal.NewFromInt(100)
	for i, rule := range t {
		if rule.Percent.IsNegative() || rule.Percent.GreaterThan(hundred) {
			return fmt.Errorf("%w: beneficiary rule %d percent %s out of [0,100]",
				ErrInvalidInput, i+1, rule.Percent)
		}
		switch rule.Trigger {
		case TriggerDealClosed, TriggerPaymentReceived, TriggerManual:
		default:
			return fmt.Errorf("%w: beneficiary rule %d has unknown trigger %q",
				ErrInvalidInput, i+1, rule.Trigger)
		}
	}
	return nil
}

// CommissionPolicy holds configurable behavior around generation.
type CommissionPolicy struct {
	// AutoApproveOnClose starts deal_closed commissions as approved
	// instead of pending.
	AutoApproveOnClose bool
}

// =============================================================================
// STAGE TRANSITION - Explicit edge event from the caller
// =============================================================================

// StageTransition records a deal moving between stages. The caller, which
// tracks prior stage, constructs this; the engine only validates that it
// is a genuine edge into won.
type StageTransition struct {
	DealID DealID
	From   DealStage
	To     DealStage
}

// IsClosure reports whether the transition is the edge into won.
func (st StageTransition) IsClosure() bool {
	return st.To == StageWon && st.From != StageWon
}

// =============================================================================
// COMMISSION GENERATION
// =============================================================================

// GenerateCommissions derives one commission record per beneficiary rule
// for a deal that just transitioned to won. Pure: records carry no IDs and
// no timestamps; the caller assigns both and persists.
//
// Returns ErrInvalidState if the transition is not an edge into won.
func GenerateCommissions(deal Deal, transition StageTransition, table BeneficiaryTable, policy CommissionPolicy) ([]CommissionRecord, error) {
	if !transition.IsClosure() {
		return nil, fmt.Errorf("%w: commission generation requires a transition into %s (got %s -> %s)",
			ErrInvalidState, StageWon, transition.From, transition.To)
	}
	if transition.DealID != deal.ID {
		return nil, fmt.Errorf("%w: transition deal %s does not match deal %s",
			ErrInvalidInput, transition.DealID, deal.ID)
	}
	if deal.Value.IsNegative() {
		return nil, &NegativeValueError{Field: "deal value", Value: deal.Value}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	records := make([]CommissionRecord, 0, len(table))
	for _, rule := range table {
		status := CommissionPending
		if policy.AutoApproveOnClose && rule.Trigger == TriggerDealClosed {
			status = CommissionApproved
		}

		records = append(records, CommissionRecord{
			DealID:          deal.ID,
			BeneficiaryID:   rule.BeneficiaryID,
			BeneficiaryName: rule.BeneficiaryName,
			Role:            rule.Role,
			Percent:         rule.Percent,
			Amount:          deal.Value.Mul(rule.Percent.Div(hundred)).Round(2),
			Status:          status,
			Trigger:         rule.Trigger,
		})
	}

	return records, nil
}

// =============================================================================
// STATUS TRANSITIONS - Strict monotonic state machine
// =============================================================================

// NextStatus validates a commission status transition. The machine is
// strictly monotonic: repeating a transition fails rather than no-oping,
// and paid/cancelled are terminal.
func NextStatus(c CommissionRecord, to CommissionStatus) error {
	allowed := false
	switch to {
	case CommissionApproved:
		allowed = c.Status == CommissionPending
	case CommissionPaid:
		allowed = c.Status == CommissionApproved
	case CommissionCancelled:
		allowed = c.Status == CommissionPending || c.Status == CommissionApproved
	}
	if !allowed {
		return &InvalidTransitionError{CommissionID: c.ID, From: c.Status, To: to}
	}
	return nil
}
