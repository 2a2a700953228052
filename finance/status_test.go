package finance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/expocrm/finance-engine/finance"
)

func pendingInstallment(due finance.Date) finance.PaymentInstallment {
	return finance.PaymentInstallment{
		ID:      "ins_test",
		DealID:  "deal_test",
		Amount:  money("1000"),
		DueDate: due,
		Status:  finance.InstallmentPending,
		Kind:    finance.KindInitial,
	}
}

// =============================================================================
// STATUS RESOLUTION TESTS
// =============================================================================

func TestResolveStatus_Precedence(t *testing.T) {
	due := finance.NewDate(2026, time.March, 1)
	before := finance.NewDate(2026, time.February, 20)
	onDue := due
	after := finance.NewDate(2026, time.March, 15)

	cases := []struct {
		name string
		ins  finance.PaymentInstallment
		now  finance.Date
		fact finance.PaymentFact
		want finance.InstallmentStatus
	}{
		{
			name: "paid fact wins even past due",
			ins:  pendingInstallment(due),
			now:  after,
			fact: finance.Paid(after, "wire", "ref-1"),
			want: finance.InstallmentPaid,
		},
		{
			name: "partial fact asserts partial",
			ins:  pendingInstallment(due),
			now:  before,
			fact: finance.PartiallyPaid(money("400")),
			want: finance.InstallmentPartial,
		},
		{
			name: "past due without fact is overdue",
			ins:  pendingInstallment(due),
			now:  after,
			fact: finance.Unpaid(),
			want: finance.InstallmentOverdue,
		},
		{
			name: "on the due date is still pending",
			ins:  pendingInstallment(due),
			now:  onDue,
			fact: finance.Unpaid(),
			want: finance.InstallmentPending,
		},
		{
			name: "before due is pending",
			ins:  pendingInstallment(due),
			now:  before,
			fact: finance.Unpaid(),
			want: finance.InstallmentPending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := finance.ResolveStatus(tc.ins, tc.now, tc.fact)
			if got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestResolveStatus_AssertedStatesStick(t *testing.T) {
	// GIVEN: Installments already marked paid or partial
	// WHEN: Resolving with no new fact, well past the due date
	// THEN: Time alone never downgrades them to overdue

	due := finance.NewDate(2026, time.March, 1)
	late := finance.NewDate(2026, time.June, 1)

	paid := pendingInstallment(due)
	paid.Status = finance.InstallmentPaid
	if got := finance.ResolveStatus(paid, late, finance.Unpaid()); got != finance.InstallmentPaid {
		t.Errorf("paid downgraded to %s", got)
	}

	partial := pendingInstallment(due)
	partial.Status = finance.InstallmentPartial
	if got := finance.ResolveStatus(partial, late, finance.Unpaid()); got != finance.InstallmentPartial {
		t.Errorf("partial downgraded to %s", got)
	}
}

func TestResolveStatus_Deterministic(t *testing.T) {
	// Same inputs, same answer. No hidden state, no randomness.
	ins := pendingInstallment(finance.NewDate(2026, time.March, 1))
	now := finance.NewDate(2026, time.April, 1)
	first := finance.ResolveStatus(ins, now, finance.Unpaid())
	for i := 0; i < 100; i++ {
		if got := finance.ResolveStatus(ins, now, finance.Unpaid()); got != first {
			t.Fatalf("iteration %d: got %s, want %s", i, got, first)
		}
	}
}

// =============================================================================
// FACT APPLICATION TESTS
// =============================================================================

func TestApplyFact_Paid(t *testing.T) {
	due := finance.NewDate(2026, time.March, 1)
	paidOn := finance.NewDate(2026, time.February, 25)
	ins := pendingInstallment(due)

	got, err := finance.ApplyFact(ins, paidOn, finance.Paid(paidOn, "transfer", "TX-42"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != finance.InstallmentPaid {
		t.Errorf("status %s, want paid", got.Status)
	}
	if got.PaidDate == nil || !got.PaidDate.Equal(paidOn) {
		t.Errorf("paid date %v, want %s", got.PaidDate, paidOn)
	}
	if got.PaymentMethod != "transfer" || got.PaymentReference != "TX-42" {
		t.Errorf("method/reference %q/%q", got.PaymentMethod, got.PaymentReference)
	}
	if !got.AmountPaid.Equal(ins.Amount) {
		t.Errorf("amount paid %s, want full %s", got.AmountPaid, ins.Amount)
	}
	// Original untouched.
	if ins.Status != finance.InstallmentPending || ins.PaidDate != nil {
		t.Error("ApplyFact mutated its input")
	}
}

func TestApplyFact_Partial(t *testing.T) {
	ins := pendingInstallment(finance.NewDate(2026, time.March, 1))
	now := finance.NewDate(2026, time.February, 20)

	got, err := finance.ApplyFact(ins, now, finance.PartiallyPaid(money("350.50")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != finance.InstallmentPartial {
		t.Errorf("status %s, want partial", got.Status)
	}
	if !got.AmountPaid.Equal(money("350.50")) {
		t.Errorf("amount paid %s", got.AmountPaid)
	}
}

func TestApplyFact_Rejections(t *testing.T) {
	ins := pendingInstallment(finance.NewDate(2026, time.March, 1))
	now := finance.NewDate(2026, time.February, 20)

	cases := []struct {
		name string
		fact finance.PaymentFact
	}{
		{"paid without date", finance.Paid(finance.Date{}, "wire", "")},
		{"partial zero amount", finance.PartiallyPaid(finance.ZeroMoney())},
		{"partial negative amount", finance.PartiallyPaid(money("-10"))},
		{"partial exceeds amount", finance.PartiallyPaid(money("1000.01"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := finance.ApplyFact(ins, now, tc.fact)
			if !errors.Is(err, finance.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
