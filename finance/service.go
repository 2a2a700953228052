/*
service.go - Orchestration over the pure engine

PURPOSE:
  Wires the pure functions (schedule generation, status resolution,
  commission derivation, aggregation) to a Store and to the two
  explicit state transitions (approve, mark paid). This is the layer
  the HTTP API and any other caller talk to.

EDGE-TRIGGERED CLOSURE:
  CloseDeal consumes an explicit StageTransition event. The engine
  validates the edge; the service additionally persists a closure
  marker so a replayed event fails with ErrAlreadyClosed instead of
  duplicating the schedule and commissions.

TRANSITIONS:
  Approve and MarkPaid load the record, validate the transition, then
  write with an optimistic check-then-set: the store only accepts the
  write if the status is still what the service read. A concurrent
  transition on the same record loses with ErrInvalidState; nothing is
  silently overwritten and a failed call leaves the record unchanged.

SEE ALSO:
  - store.go: The Store and SwapCommission contracts
  - dispatch.go: Reminder fan-out for newly overdue installments
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store      Store
	dispatcher ReminderDispatcher
	log        zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		dispatcher: NopDispatcher{},
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ServiceOption func(*Service)

func WithDispatcher(d ReminderDispatcher) ServiceOption {
	return func(s *Service) { s.dispatcher = d }
}

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// =============================================================================
// DEAL CLOSURE
// =============================================================================

// Closure is the result of processing a deal's transition into won.
type Closure struct {
	Deal         Deal
	Installments []PaymentInstallment
	Commissions  []CommissionRecord
}

// CloseDeal processes a deal's first transition into won: it generates the
// installment schedule and the commission batch and persists both
// atomically together with a closure marker. Replaying the same closure
// fails with ErrAlreadyClosed.
//
// The first installment is flagged CommissionTriggered: its payment is
// what advances payment_received commissions.
func (s *Service) CloseDeal(
	ctx context.Context,
	deal Deal,
	transition StageTransition,
	closeDate Date,
	split SplitPolicy,
	table BeneficiaryTable,
	policy CommissionPolicy,
) (*Closure, error) {
	logger := s.log.With().
		Str("deal_id", string(deal.ID)).
		Str("operation", "close_deal").
		Logger()

	if !transition.IsClosure() {
		return nil, fmt.Errorf("%w: close requires a transition into %s (got %s -> %s)",
			ErrInvalidState, StageWon, transition.From, transition.To)
	}

	closed, err := s.store.IsDealClosed(ctx, deal.ID)
	if err != nil {
		return nil, fmt.Errorf("check closure for deal %s: %w", deal.ID, err)
	}
	if closed {
		return nil, fmt.Errorf("deal %s: %w", deal.ID, ErrAlreadyClosed)
	}

	installments, err := GenerateSchedule(deal.Value, closeDate, split)
	if err != nil {
		return nil, err
	}
	commissions, err := GenerateCommissions(deal, transition, table, policy)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range installments {
		installments[i].ID = newInstallmentID()
		installments[i].DealID = deal.ID
		installments[i].ClientID = deal.ClientID
		if i == 0 {
			installments[i].CommissionTriggered = true
		}
	}
	for i := range commissions {
		commissions[i].ID = newCommissionID()
		commissions[i].CreatedAt = now
		if commissions[i].Status == CommissionApproved {
			at := now
			commissions[i].ApprovedAt = &at
		}
	}

	deal.Stage = StageWon
	deal.UpdatedAt = now
	// One atomic write: a rejected replay must not leave a won-stage deal
	// row behind.
	if err := s.store.SaveClosure(ctx, deal, installments, commissions); err != nil {
		return nil, fmt.Errorf("save closure for deal %s: %w", deal.ID, err)
	}

	logger.Info().
		Int("installments", len(installments)).
		Int("commissions", len(commissions)).
		Str("value", deal.Value.String()).
		Msg("deal closed, schedule and commissions generated")

	return &Closure{Deal: deal, Installments: installments, Commissions: commissions}, nil
}

// =============================================================================
// PAYMENT RECORDING
// =============================================================================

// RecordPayment applies a full-payment fact to an installment. When the
// paid installment carries the CommissionTriggered flag, pending
// payment_received commissions on the deal advance to approved.
func (s *Service) RecordPayment(ctx context.Context, id InstallmentID, fact PaymentFact) (*PaymentInstallment, error) {
	if fact.Kind != FactPaid {
		return nil, fmt.Errorf("%w: RecordPayment requires a paid fact", ErrInvalidInput)
	}
	return s.applyFact(ctx, id, fact)
}

// RecordPartialPayment asserts a partial payment on an installment.
// How partials reflow into the remaining schedule is undecided product
// behavior; the installment simply holds state partial with the asserted
// amount until a full payment fact arrives.
func (s *Service) RecordPartialPayment(ctx context.Context, id InstallmentID, amountPaid Money) (*PaymentInstallment, error) {
	return s.applyFact(ctx, id, PartiallyPaid(amountPaid))
}

func (s *Service) applyFact(ctx context.Context, id InstallmentID, fact PaymentFact) (*PaymentInstallment, error) {
	ins, err := s.store.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := ApplyFact(*ins, DateOf(s.now()), fact)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateInstallment(ctx, updated); err != nil {
		return nil, fmt.Errorf("update installment %s: %w", id, err)
	}

	s.log.Info().
		Str("installment_id", string(id)).
		Str("deal_id", string(updated.DealID)).
		Str("status", string(updated.Status)).
		Msg("payment recorded")

	if fact.Kind == FactPaid && updated.CommissionTriggered {
		if err := s.releasePaymentCommissions(ctx, updated.DealID); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

// releasePaymentCommissions advances pending payment_received commissions
// on a deal to approved.
func (s *Service) releasePaymentCommissions(ctx context.Context, dealID DealID) error {
	pending := CommissionPending
	trigger := TriggerPaymentReceived
	commissions, err := s.store.ListCommissions(ctx, CommissionFilter{
		DealID:  &dealID,
		Status:  &pending,
		Trigger: &trigger,
	})
	if err != nil {
		return fmt.Errorf("list commissions for deal %s: %w", dealID, err)
	}

	now := s.now()
	for _, c := range commissions {
		updated := c
		updated.Status = CommissionApproved
		at := now
		updated.ApprovedAt = &at
		if err := s.store.SwapCommission(ctx, CommissionPending, updated); err != nil {
			return fmt.Errorf("approve commission %s: %w", c.ID, err)
		}
		s.log.Info().
			Str("commission_id", string(c.ID)).
			Str("deal_id", string(dealID)).
			Msg("payment-triggered commission approved")
	}
	return nil
}

// =============================================================================
// STATUS REFRESH
// =============================================================================

// RefreshStatuses re-resolves every pending installment against now,
// persists the ones that became overdue, and hands them to the reminder
// dispatcher. Safe to run repeatedly; resolution is idempotent.
func (s *Service) RefreshStatuses(ctx context.Context, now Date) ([]PaymentInstallment, error) {
	pending := InstallmentPending
	installments, err := s.store.ListInstallments(ctx, InstallmentFilter{Status: &pending})
	if err != nil {
		return nil, fmt.Errorf("list pending installments: %w", err)
	}

	var newlyOverdue []PaymentInstallment
	for _, ins := range installments {
		status := ResolveStatus(ins, now, Unpaid())
		if status == ins.Status {
			continue
		}
		ins.Status = status
		if err := s.store.UpdateInstallment(ctx, ins); err != nil {
			return nil, fmt.Errorf("update installment %s: %w", ins.ID, err)
		}
		if status == InstallmentOverdue {
			newlyOverdue = append(newlyOverdue, ins)
		}
	}

	if len(newlyOverdue) > 0 {
		s.log.Info().Int("count", len(newlyOverdue)).Msg("installments became overdue")
		s.dispatcher.DispatchOverdue(ctx, newlyOverdue)
	}
	return newlyOverdue, nil
}

// =============================================================================
// COMMISSION TRANSITIONS
// =============================================================================

// ApproveCommission moves a pending commission to approved.
func (s *Service) ApproveCommission(ctx context.Context, id CommissionID) (*CommissionRecord, error) {
	return s.transitionCommission(ctx, id, CommissionApproved)
}

// MarkCommissionPaid moves an approved commission to paid.
func (s *Service) MarkCommissionPaid(ctx context.Context, id CommissionID) (*CommissionRecord, error) {
	return s.transitionCommission(ctx, id, CommissionPaid)
}

// CancelCommission cancels a pending or approved commission.
func (s *Service) CancelCommission(ctx context.Context, id CommissionID) (*CommissionRecord, error) {
	return s.transitionCommission(ctx, id, CommissionCancelled)
}

func (s *Service) transitionCommission(ctx context.Context, id CommissionID, to CommissionStatus) (*CommissionRecord, error) {
	c, err := s.store.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := NextStatus(*c, to); err != nil {
		return nil, err
	}

	updated := *c
	updated.Status = to
	now := s.now()
	switch to {
	case CommissionApproved:
		updated.ApprovedAt = &now
	case CommissionPaid:
		updated.PaidAt = &now
	}

	// Check-then-set: the write lands only if nobody raced us.
	if err := s.store.SwapCommission(ctx, c.Status, updated); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("commission_id", string(id)).
		Str("from", string(c.Status)).
		Str("to", string(to)).
		Msg("commission transitioned")

	return &updated, nil
}

// =============================================================================
// METRICS
// =============================================================================

// Metrics folds the stored installments and commissions into summary
// metrics, optionally scoped to a single deal.
func (s *Service) Metrics(ctx context.Context, dealID *DealID) (FinancialMetrics, error) {
	installments, err := s.store.ListInstallments(ctx, InstallmentFilter{DealID: dealID})
	if err != nil {
		return FinancialMetrics{}, fmt.Errorf("list installments: %w", err)
	}
	commissions, err := s.store.ListCommissions(ctx, CommissionFilter{DealID: dealID})
	if err != nil {
		return FinancialMetrics{}, fmt.Errorf("list commissions: %w", err)
	}
	return Aggregate(installments, commissions), nil
}

// =============================================================================
// QUERIES
// =============================================================================

// ListInstallments returns stored installments matching the filter.
func (s *Service) ListInstallments(ctx context.Context, filter InstallmentFilter) ([]PaymentInstallment, error) {
	return s.store.ListInstallments(ctx, filter)
}

// ListCommissions returns stored commissions matching the filter.
func (s *Service) ListCommissions(ctx context.Context, filter CommissionFilter) ([]CommissionRecord, error) {
	return s.store.ListCommissions(ctx, filter)
}

// =============================================================================
// ID GENERATION
// =============================================================================

func newInstallmentID() InstallmentID {
	return InstallmentID("ins_" + uuid.New().String())
}

func newCommissionID() CommissionID {
	return CommissionID("com_" + uuid.New().String())
}
