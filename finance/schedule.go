/*
schedule.go - Payment schedule generation

PURPOSE:
  Derives the installment schedule for a closed deal: deal value plus
  close date in, ordered installment batch out. The split is policy
  data, not code, so a different deal type can pay 50/50 over 30 days
  without touching the algorithm.

SPLIT POLICY:
  An ordered list of steps, each a fraction of the deal value, an
  offset in days from the close date, and an installment kind. The
  default mirrors the standard exhibition contract:

    30% due at close          (initial)
    40% due at close + 30d    (progress)
    30% due at close + 60d    (final)

ROUNDING:
  Each step's amount is fraction * value rounded to cents. The final
  step absorbs the remainder so the schedule sums exactly to the deal
  value. No drift, ever.

EDGE CASES:
  - value == 0: no installments (zero-amount rows are never generated)
  - value < 0:  ErrInvalidInput
  - sub-cent values: steps that round to zero are dropped and the
    surviving rows renumbered, so sequences stay contiguous
  - single-step policy: the one installment carries KindFull

SEE ALSO:
  - status.go: Assigns lifecycle status after generation
  - factory/: Parses split policies from JSON per deal type
*/
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SPLIT POLICY - Configuration for the installment split
// =============================================================================

// SplitStep is one slice of the deal value.
type SplitStep struct {
	// Fraction of the deal value, in [0, 1]. All fractions in a policy
	// must sum to exactly 1.
	Fraction decimal.Decimal

	// OffsetDays is the due-date offset from the close date.
	OffsetDays int

	Kind InstallmentKind
}

// SplitPolicy is an ordered set of split steps.
type SplitPolicy struct {
	Name  string
	Steps []SplitStep
}

// DefaultSplitPolicy returns the standard 30/40/30 exhibition split.
func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{
		Name: "standard-30-40-30",
		Steps: []SplitStep{
			{Fraction: decimal.NewFromFloat(0.30), OffsetDays: 0, Kind: KindInitial},
			{Fraction: decimal.NewFromFloat(0.40), OffsetDays: 30, Kind: KindProgress},
			{Fraction: decimal.NewFromFloat(0.30), OffsetDays: 60, Kind: KindFinal},
		},
	}
}

// FullPaymentPolicy returns a single-installment policy (full amount at close).
func FullPaymentPolicy() SplitPolicy {
	return SplitPolicy{
		Name: "full-at-close",
		Steps: []SplitStep{
			{Fraction: decimal.NewFromInt(1), OffsetDays: 0, Kind: KindFull},
		},
	}
}

// Validate checks policy well-formedness: at least one step, fractions in
// [0, 1] summing to exactly 1, non-negative offsets in ascending order,
// and a sane kind shape (exactly one initial, or a single full step).
func (p SplitPolicy) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: split policy %q has no steps", ErrInvalidInput, p.Name)
	}

	sum := decimal.Zero
	prevOffset := -1
	initials := 0
	for i, step := range p.Steps {
		if step.Fraction.IsNegative() || step.Fraction.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: split step %d fraction %s out of [0,1]", ErrInvalidInput, i+1, step.Fraction)
		}
		if step.OffsetDays < 0 {
			return fmt.Errorf("%w: split step %d has negative offset %d", ErrInvalidInput, i+1, step.OffsetDays)
		}
		if step.OffsetDays <= prevOffset {
			return fmt.Errorf("%w: split step offsets must be strictly ascending", ErrInvalidInput)
		}
		if step.Kind == KindFull && len(p.Steps) > 1 {
			return fmt.Errorf("%w: kind full is only valid in a single-step policy", ErrInvalidInput)
		}
		if step.Kind == KindInitial {
			initials++
		}
		prevOffset = step.OffsetDays
		sum = sum.Add(step.Fraction)
	}

	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: split fractions sum to %s, want 1", ErrInvalidInput, sum)
	}
	// A single-step policy is the full payment; multi-step schedules open
	// with exactly one initial installment.
	if len(p.Steps) > 1 && initials != 1 {
		return fmt.Errorf("%w: split policy %q has %d initial steps, want exactly 1",
			ErrInvalidInput, p.Name, initials)
	}
	return nil
}

// =============================================================================
// SCHEDULE GENERATOR
// =============================================================================

// GenerateSchedule derives the installment batch for a deal value and close
// date under the given split policy. Pure: it constructs records with
// status pending and no identifiers; the caller assigns IDs and persists.
//
// The last step absorbs the rounding remainder so that the amounts sum
// exactly to value.
func GenerateSchedule(value Money, closeDate Date, policy SplitPolicy) ([]PaymentInstallment, error) {
	if value.IsNegative() {
		return nil, &NegativeValueError{Field: "deal value", Value: value}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	// A zero-value deal has nothing to collect.
	if value.IsZero() {
		return nil, nil
	}

	steps := len(policy.Steps)
	installments := make([]PaymentInstallment, 0, steps)

	allocated := ZeroMoney()
	for i, step := range policy.Steps {
		var amount Money
		if i == steps-1 {
			// Remainder absorption keeps the sum exact.
			amount = value.Sub(allocated)
		} else {
			amount = value.Mul(step.Fraction).Round(2)
		}
		allocated = allocated.Add(amount)

		// Sub-cent deal values can round a step down to nothing; a
		// zero-amount row is never emitted.
		if amount.IsZero() {
			continue
		}

		kind := step.Kind
		if steps == 1 {
			kind = KindFull
		}

		installments = append(installments, PaymentInstallment{
			Amount:     amount,
			DueDate:    closeDate.AddDays(step.OffsetDays),
			Status:     InstallmentPending,
			Kind:       kind,
			AmountPaid: ZeroMoney(),
		})
	}

	for i := range installments {
		installments[i].Sequence = i + 1
		installments[i].Total = len(installments)
	}

	return installments, nil
}

// ScheduleSum returns the total amount across a schedule. Used by callers
// and tests to assert the sum-equals-deal-value invariant.
func ScheduleSum(installments []PaymentInstallment) Money {
	sum := ZeroMoney()
	for _, ins := range installments {
		sum = sum.Add(ins.Amount)
	}
	return sum
}
