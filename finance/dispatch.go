package finance

import (
	"context"

	"github.com/rs/zerolog"
)

// =============================================================================
// REMINDER DISPATCHER - External collaborator for overdue follow-up
// =============================================================================

// ReminderDispatcher consumes installments that just became overdue.
// Delivery (email, SMS, push) lives outside the engine; implementations
// are invoked by the caller after RefreshStatuses returns.
type ReminderDispatcher interface {
	DispatchOverdue(ctx context.Context, overdue []PaymentInstallment)
}

// NopDispatcher drops reminders. Used when follow-up is disabled.
type NopDispatcher struct{}

func (NopDispatcher) DispatchOverdue(context.Context, []PaymentInstallment) {}

// LogDispatcher records reminders in the structured log. A stand-in for a
// real notification channel in dev and tests.
type LogDispatcher struct {
	Logger zerolog.Logger
}

func (d LogDispatcher) DispatchOverdue(ctx context.Context, overdue []PaymentInstallment) {
	for _, ins := range overdue {
		d.Logger.Info().
			Str("installment_id", string(ins.ID)).
			Str("deal_id", string(ins.DealID)).
			Str("client_id", string(ins.ClientID)).
			Str("amount", ins.Amount.String()).
			Str("due_date", ins.DueDate.String()).
			Msg("installment overdue, reminder due")
	}
}
