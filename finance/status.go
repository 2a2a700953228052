/*
status.go - Installment status resolution

PURPOSE:
  Answers "what is this installment's status right now?" from three
  inputs only: the installment, the current time, and an optional
  payment fact. No counters, no randomness; calling it twice with the
  same inputs yields the same answer.

PRECEDENCE:
  1. A Paid fact wins unconditionally, even past the due date.
  2. A PartiallyPaid fact asserts partial.
  3. No fact and now past due -> overdue.
  4. Otherwise -> pending.

PARTIAL PAYMENTS:
  partial is an asserted state, set when a user records a partial
  payment. The resolver never derives it by comparing amounts; whether
  a partially paid installment should reflow into the remaining
  schedule is an open product question and deliberately not decided
  here (see DESIGN.md).

SEE ALSO:
  - schedule.go: Creates installments with status pending
  - service.go: Applies facts and persists the resolved status
*/
package finance

// =============================================================================
// STATUS RESOLVER
// =============================================================================

// ResolveStatus computes the current status of an installment. Pure and
// idempotent; it does not mutate its input.
func ResolveStatus(ins PaymentInstallment, now Date, fact PaymentFact) InstallmentStatus {
	switch fact.Kind {
	case FactPaid:
		return InstallmentPaid
	case FactPartiallyPaid:
		return InstallmentPartial
	}

	// An already-asserted terminal or partial state sticks until a new
	// fact arrives; time alone never downgrades paid or partial.
	switch ins.Status {
	case InstallmentPaid:
		return InstallmentPaid
	case InstallmentPartial:
		return InstallmentPartial
	}

	if now.After(ins.DueDate) {
		return InstallmentOverdue
	}
	return InstallmentPending
}

// ApplyFact returns a copy of the installment with the fact's fields and
// the resolved status applied. The original is untouched.
func ApplyFact(ins PaymentInstallment, now Date, fact PaymentFact) (PaymentInstallment, error) {
	switch fact.Kind {
	case FactPaid:
		if fact.PaidDate.IsZero() {
			return ins, errInvalidFact("paid fact requires a paid date")
		}
		paidDate := fact.PaidDate
		ins.PaidDate = &paidDate
		ins.PaymentMethod = fact.Method
		ins.PaymentReference = fact.Reference
		ins.AmountPaid = ins.Amount

	case FactPartiallyPaid:
		if fact.AmountPaid.IsNegative() || fact.AmountPaid.IsZero() {
			return ins, errInvalidFact("partial payment amount must be positive")
		}
		if fact.AmountPaid.GreaterThan(ins.Amount) {
			return ins, errInvalidFact("partial payment exceeds installment amount")
		}
		ins.AmountPaid = fact.AmountPaid
	}

	ins.Status = ResolveStatus(ins, now, fact)
	return ins, nil
}

func errInvalidFact(msg string) error {
	return &factError{msg: msg}
}

type factError struct {
	msg string
}

func (e *factError) Error() string { return "payment fact: " + e.msg }
func (e *factError) Unwrap() error { return ErrInvalidInput }
