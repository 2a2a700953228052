/*
Package finance provides the payment-plan and commission engine for the
exhibition CRM.

PURPOSE:
  This package contains the one subsystem of the CRM with real domain
  logic: deriving a deterministic installment schedule from a closed
  deal, tracking each installment's lifecycle (due on time, paid,
  overdue, partially paid), and deriving commission entries triggered
  by deal-lifecycle events.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary quantity backed by decimal.Decimal
  - Deal: Read model of a deal owned by the surrounding CRM
  - PaymentInstallment: One scheduled partial payment of a deal's value
  - PaymentFact: Caller-supplied evidence of a payment (tagged variant)
  - CommissionRecord: A payout owed to a role holder on a closed deal

DESIGN PRINCIPLES:
  1. Purity: schedule generation, status resolution, commission
     derivation, and aggregation are pure functions over their inputs
  2. Precision: Uses decimal.Decimal to avoid floating-point drift;
     installment amounts always sum exactly to the deal value
  3. Explicit facts: Payment status is resolved from caller-supplied
     payment facts, never from randomness or hidden state
  4. Strict transitions: Commission statuses move forward only;
     repeating a transition is an error, not a silent no-op

USAGE:
  installments, err := finance.GenerateSchedule(
      finance.MustMoney("250000"),
      finance.NewDate(2026, time.January, 5),
      finance.DefaultSplitPolicy(),
  )

SEE ALSO:
  - schedule.go: Split policy and schedule generation
  - status.go: Installment status resolution
  - commission.go: Commission rules and stage transitions
  - aggregate.go: Financial metrics fold
*/
package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary quantity (single implicit currency)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money        { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money   { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                    { return Money{Value: decimal.Zero} }

// MustMoney parses a decimal string, returning zero on malformed input.
// Intended for literals in configuration and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

// ParseMoney parses a decimal string from untrusted input.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: money value %q", ErrInvalidInput, s)
	}
	return Money{Value: d}, nil
}

func (m Money) Add(o Money) Money              { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money              { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(f decimal.Decimal) Money    { return Money{Value: m.Value.Mul(f)} }
func (m Money) Div(f decimal.Decimal) Money    { return Money{Value: m.Value.Div(f)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) Round(places int32) Money       { return Money{Value: m.Value.Round(places)} }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool             { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool       { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool          { return m.Value.LessThan(o.Value) }
func (m Money) String() string                 { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DealID string
type ClientID string
type InstallmentID string
type CommissionID string
type BeneficiaryID string

// =============================================================================
// DEAL - Read model owned by the surrounding CRM
// =============================================================================

type DealStage string

const (
	StageLead        DealStage = "lead"
	StageProposal    DealStage = "proposal"
	StageNegotiation DealStage = "negotiation"
	StageWon         DealStage = "won" // terminal; triggers schedule + commissions
	StageLost        DealStage = "lost"
)

// Deal is read-only to the engine. The CRM owns its lifecycle; the engine
// only reacts to the stage transition into StageWon.
type Deal struct {
	ID        DealID
	Title     string
	Value     Money
	Stage     DealStage
	ClientID  ClientID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PAYMENT INSTALLMENT - One scheduled partial payment
// =============================================================================

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"

	// InstallmentPartial is asserted by an explicit partial-payment action.
	// It is never derived by the resolver from amount comparison.
	InstallmentPartial InstallmentStatus = "partial"
)

type InstallmentKind string

const (
	KindInitial  InstallmentKind = "initial"
	KindProgress InstallmentKind = "progress"
	KindFinal    InstallmentKind = "final"
	KindFull     InstallmentKind = "full"
)

// PaymentInstallment belongs to exactly one deal. Created in one fixed batch
// at deal closure, mutated only through status resolution and explicit
// payment recording, never deleted.
type PaymentInstallment struct {
	ID       InstallmentID
	DealID   DealID
	ClientID ClientID // denormalized for display only

	Amount  Money
	DueDate Date

	Status   InstallmentStatus
	PaidDate *Date

	Kind     InstallmentKind
	Sequence int // 1-based, contiguous per deal
	Total    int // total installments in the deal's schedule

	PaymentMethod    string
	PaymentReference string
	Notes            string

	// AmountPaid tracks the asserted amount for partial payments.
	AmountPaid Money

	// CommissionTriggered marks the installment whose payment constitutes
	// deal closure for payment-triggered commissions.
	CommissionTriggered bool
}

// =============================================================================
// PAYMENT FACT - Caller-supplied payment evidence (tagged variant)
// =============================================================================

type PaymentFactKind int

const (
	FactUnpaid PaymentFactKind = iota
	FactPaid
	FactPartiallyPaid
)

// PaymentFact replaces the demo-era "random chance this was paid" with an
// explicit record of what actually happened.
type PaymentFact struct {
	Kind PaymentFactKind

	// Set for FactPaid
	PaidDate  Date
	Method    string
	Reference string

	// Set for FactPartiallyPaid
	AmountPaid Money
}

func Unpaid() PaymentFact { return PaymentFact{Kind: FactUnpaid} }

func Paid(date Date, method, reference string) PaymentFact {
	return PaymentFact{Kind: FactPaid, PaidDate: date, Method: method, Reference: reference}
}

func PartiallyPaid(amount Money) PaymentFact {
	return PaymentFact{Kind: FactPartiallyPaid, AmountPaid: amount}
}

// =============================================================================
// COMMISSION RECORD - Payout owed to a role holder
// =============================================================================

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionApproved  CommissionStatus = "approved"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

type TriggerEvent string

const (
	TriggerDealClosed      TriggerEvent = "deal_closed"
	TriggerPaymentReceived TriggerEvent = "payment_received"
	TriggerManual          TriggerEvent = "manual"
)

// CommissionRecord belongs to exactly one deal and one beneficiary.
// Amount is always Percent/100 * deal value; the two are never mutated
// independently. Never deleted, only cancelled.
type CommissionRecord struct {
	ID     CommissionID
	DealID DealID

	BeneficiaryID   BeneficiaryID
	BeneficiaryName string
	Role            string

	Percent decimal.Decimal // 0-100
	Amount  Money

	Status  CommissionStatus
	Trigger TriggerEvent

	CreatedAt  time.Time
	ApprovedAt *time.Time
	PaidAt     *time.Time
	Notes      string
}

// =============================================================================
// FINANCIAL METRICS - Derived, recomputed on demand, never persisted
// =============================================================================

type FinancialMetrics struct {
	// Sum of paid installment amounts (partials count AmountPaid).
	TotalRevenue Money

	PaymentsPending Money
	PaymentsOverdue Money

	CommissionPending Money
	CommissionPaid    Money

	// paid / (paid + pending + overdue); 0 when the denominator is 0.
	CollectionRate decimal.Decimal

	// Mean of (paidDate - dueDate) in days over paid installments;
	// 0 when none are paid. Negative means clients pay early.
	AvgPaymentDays decimal.Decimal
}
