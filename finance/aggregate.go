/*
aggregate.go - Financial metrics fold

PURPOSE:
  Folds all installments and commissions into the summary numbers the
  dashboard shows: collected revenue, pending and overdue exposure,
  commission liabilities, collection rate, average payment time.

  Recomputed on every query rather than maintained incrementally: the
  record sets are bounded by deal count times a fixed installment
  count, so a full fold is cheap and cannot drift out of sync.

FORMULAS:
  CollectionRate = paid / (paid + pending + overdue), 0 when the
                   denominator is 0 (never NaN)
  AvgPaymentDays = mean(paidDate - dueDate) in days over paid
                   installments, 0 when none are paid

SEE ALSO:
  - service.go: Loads record sets and calls Aggregate
*/
package finance

import "github.com/shopspring/decimal"

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregate computes FinancialMetrics from the full installment and
// commission sets. Pure fold, no side effects.
func Aggregate(installments []PaymentInstallment, commissions []CommissionRecord) FinancialMetrics {
	var (
		paid    = ZeroMoney()
		pending = ZeroMoney()
		overdue = ZeroMoney()

		paidCount int64
		totalDays int64
	)

	for _, ins := range installments {
		switch ins.Status {
		case InstallmentPaid:
			paid = paid.Add(ins.Amount)
			if ins.PaidDate != nil {
				totalDays += int64(DaysBetween(ins.DueDate, *ins.PaidDate))
				paidCount++
			}
		case InstallmentPending:
			pending = pending.Add(ins.Amount)
		case InstallmentOverdue:
			overdue = overdue.Add(ins.Amount)
		case InstallmentPartial:
			// The collected portion counts as revenue, the rest stays
			// outstanding as pending exposure.
			paid = paid.Add(ins.AmountPaid)
			pending = pending.Add(ins.Amount.Sub(ins.AmountPaid))
		}
	}

	commissionPending := ZeroMoney()
	commissionPaid := ZeroMoney()
	for _, c := range commissions {
		switch c.Status {
		case CommissionPending, CommissionApproved:
			commissionPending = commissionPending.Add(c.Amount)
		case CommissionPaid:
			commissionPaid = commissionPaid.Add(c.Amount)
		}
		// Cancelled commissions are neither owed nor paid.
	}

	rate := decimal.Zero
	denominator := paid.Add(pending).Add(overdue)
	if !denominator.IsZero() {
		rate = paid.Value.Div(denominator.Value)
	}

	avgDays := decimal.Zero
	if paidCount > 0 {
		avgDays = decimal.NewFromInt(totalDays).Div(decimal.NewFromInt(paidCount))
	}

	return FinancialMetrics{
		TotalRevenue:      paid,
		PaymentsPending:   pending,
		PaymentsOverdue:   overdue,
		CommissionPending: commissionPending,
		CommissionPaid:    commissionPaid,
		CollectionRate:    rate,
		AvgPaymentDays:    avgDays,
	}
}
