package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/expocrm/finance-engine/api"
	"github.com/expocrm/finance-engine/factory"
	"github.com/expocrm/finance-engine/finance"
	"github.com/expocrm/finance-engine/finance/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSchedulerFixture(t *testing.T) (*api.RefreshScheduler, *finance.Service) {
	t.Helper()

	doc := factory.StandardConfigJSON("default", "Default policy", nil)
	cfg, err := factory.NewPolicyFactory().ParseConfig(doc)
	require.NoError(t, err)

	fixed := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	svc := finance.NewService(store.NewMemory(),
		finance.WithClock(func() time.Time { return fixed }))

	deal := finance.Deal{
		ID:       "deal_expo",
		Title:    "Expo Hall Buildout",
		Value:    finance.MustMoney("250000"),
		Stage:    finance.StageNegotiation,
		ClientID: "client_acme",
	}
	transition := finance.StageTransition{DealID: deal.ID, From: finance.StageNegotiation, To: finance.StageWon}
	_, err = svc.CloseDeal(context.Background(), deal, transition,
		finance.NewDate(2026, time.January, 5), cfg.Split, cfg.Beneficiaries, cfg.Commission)
	require.NoError(t, err)

	return api.NewRefreshScheduler(svc, zerolog.Nop()), svc
}

func TestRefreshScheduler_RunNow(t *testing.T) {
	// GIVEN: A closed deal and a scheduler whose clock is past two due dates
	// WHEN: Running a refresh
	// THEN: Those installments are now overdue; a second run changes nothing

	scheduler, svc := newSchedulerFixture(t)
	scheduler.Now = func() finance.Date { return finance.NewDate(2026, time.February, 10) }

	scheduler.RunNow()

	overdue := finance.InstallmentOverdue
	list, err := svc.ListInstallments(context.Background(),
		finance.InstallmentFilter{Status: &overdue})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	scheduler.RunNow()
	list, err = svc.ListInstallments(context.Background(),
		finance.InstallmentFilter{Status: &overdue})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	scheduler, svc := newSchedulerFixture(t)
	scheduler.Now = func() finance.Date { return finance.NewDate(2026, time.February, 10) }
	scheduler.CheckInterval = time.Hour

	// Start runs one refresh immediately; Stop must return cleanly.
	scheduler.Start()
	scheduler.Stop()

	overdue := finance.InstallmentOverdue
	list, err := svc.ListInstallments(context.Background(),
		finance.InstallmentFilter{Status: &overdue})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRefreshScheduler_Disabled(t *testing.T) {
	scheduler, svc := newSchedulerFixture(t)
	scheduler.Now = func() finance.Date { return finance.NewDate(2026, time.February, 10) }
	scheduler.Enabled = false

	scheduler.Start()
	scheduler.Stop()

	overdue := finance.InstallmentOverdue
	list, err := svc.ListInstallments(context.Background(),
		finance.InstallmentFilter{Status: &overdue})
	require.NoError(t, err)
	assert.Empty(t, list, "a disabled scheduler never refreshes")
}
