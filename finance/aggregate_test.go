package finance_test

import (
	"testing"
	"time"

	"github.com/expocrm/finance-engine/finance"
	"github.com/shopspring/decimal"
)

func paidOn(due, paid finance.Date, amount string) finance.PaymentInstallment {
	ins := finance.PaymentInstallment{
		Amount:     money(amount),
		AmountPaid: money(amount),
		DueDate:    due,
		Status:     finance.InstallmentPaid,
	}
	ins.PaidDate = &paid
	return ins
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregate_CollectionRate(t *testing.T) {
	// GIVEN: One 100 paid, one 50 pending, one 50 overdue installment
	// WHEN: Aggregating
	// THEN: Collection rate is 100 / 200 = 0.5

	due := finance.NewDate(2026, time.March, 1)
	installments := []finance.PaymentInstallment{
		paidOn(due, due, "100"),
		{Amount: money("50"), DueDate: due, Status: finance.InstallmentPending},
		{Amount: money("50"), DueDate: due, Status: finance.InstallmentOverdue},
	}

	m := finance.Aggregate(installments, nil)
	if !m.CollectionRate.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("collection rate %s, want 0.5", m.CollectionRate)
	}
	if !m.TotalRevenue.Equal(money("100")) {
		t.Errorf("revenue %s, want 100", m.TotalRevenue)
	}
	if !m.PaymentsPending.Equal(money("50")) {
		t.Errorf("pending %s, want 50", m.PaymentsPending)
	}
	if !m.PaymentsOverdue.Equal(money("50")) {
		t.Errorf("overdue %s, want 50", m.PaymentsOverdue)
	}
}

func TestAggregate_Empty_NoDivisionByZero(t *testing.T) {
	m := finance.Aggregate(nil, nil)
	if !m.CollectionRate.IsZero() {
		t.Errorf("collection rate %s, want 0", m.CollectionRate)
	}
	if !m.AvgPaymentDays.IsZero() {
		t.Errorf("avg payment days %s, want 0", m.AvgPaymentDays)
	}
	if !m.TotalRevenue.IsZero() {
		t.Errorf("revenue %s, want 0", m.TotalRevenue)
	}
}

func TestAggregate_AvgPaymentDays(t *testing.T) {
	// GIVEN: One installment paid 10 days late, one paid 4 days early
	// WHEN: Aggregating
	// THEN: Mean is (10 + -4) / 2 = 3 days

	due := finance.NewDate(2026, time.March, 1)
	installments := []finance.PaymentInstallment{
		paidOn(due, due.AddDays(10), "100"),
		paidOn(due, due.AddDays(-4), "100"),
	}

	m := finance.Aggregate(installments, nil)
	if !m.AvgPaymentDays.Equal(decimal.NewFromInt(3)) {
		t.Errorf("avg payment days %s, want 3", m.AvgPaymentDays)
	}
}

func TestAggregate_PartialSplitsExposure(t *testing.T) {
	// A 1000 installment with 400 asserted paid counts 400 as revenue
	// and 600 as pending exposure.
	installments := []finance.PaymentInstallment{{
		Amount:     money("1000"),
		AmountPaid: money("400"),
		DueDate:    finance.NewDate(2026, time.March, 1),
		Status:     finance.InstallmentPartial,
	}}

	m := finance.Aggregate(installments, nil)
	if !m.TotalRevenue.Equal(money("400")) {
		t.Errorf("revenue %s, want 400", m.TotalRevenue)
	}
	if !m.PaymentsPending.Equal(money("600")) {
		t.Errorf("pending %s, want 600", m.PaymentsPending)
	}
}

func TestAggregate_CommissionBuckets(t *testing.T) {
	// Pending and approved are both unpaid liabilities; cancelled
	// disappears from the books entirely.
	commissions := []finance.CommissionRecord{
		{Amount: money("12500"), Status: finance.CommissionPending},
		{Amount: money("5000"), Status: finance.CommissionApproved},
		{Amount: money("3000"), Status: finance.CommissionPaid},
		{Amount: money("9999"), Status: finance.CommissionCancelled},
	}

	m := finance.Aggregate(nil, commissions)
	if !m.CommissionPending.Equal(money("17500")) {
		t.Errorf("commission pending %s, want 17500", m.CommissionPending)
	}
	if !m.CommissionPaid.Equal(money("3000")) {
		t.Errorf("commission paid %s, want 3000", m.CommissionPaid)
	}
}
