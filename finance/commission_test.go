package finance_test

import (
	"errors"
	"testing"
	"time"

	"github.com/expocrm/finance-engine/finance"
	"github.com/shopspring/decimal"
)

func standardTable() finance.BeneficiaryTable {
	return finance.BeneficiaryTable{
		{
			BeneficiaryID:   "ben_sales_mgr",
			BeneficiaryName: "Sales Manager",
			Role:            "sales_manager",
			Percent:         decimal.NewFromInt(5),
			Trigger:         finance.TriggerDealClosed,
		},
		{
			BeneficiaryID:   "ben_account_mgr",
			BeneficiaryName: "Account Manager",
			Role:            "account_manager",
			Percent:         decimal.NewFromInt(2),
			Trigger:         finance.TriggerPaymentReceived,
		},
	}
}

func wonDeal(value string) (finance.Deal, finance.StageTransition) {
	deal := finance.Deal{
		ID:        "deal_expo",
		Title:     "Expo Hall Buildout",
		Value:     money(value),
		Stage:     finance.StageWon,
		ClientID:  "client_acme",
		CreatedAt: time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC),
	}
	transition := finance.StageTransition{
		DealID: deal.ID,
		From:   finance.StageNegotiation,
		To:     finance.StageWon,
	}
	return deal, transition
}

// =============================================================================
// COMMISSION GENERATION TESTS
// =============================================================================

func TestGenerateCommissions_StandardTable(t *testing.T) {
	// GIVEN: A 250,000 deal closing with the 5%/2% beneficiary table
	// WHEN: Generating commissions on the edge into won
	// THEN: 12,500 for the sales manager and 5,000 for the account manager

	deal, transition := wonDeal("250000")
	records, err := finance.GenerateCommissions(deal, transition, standardTable(), finance.CommissionPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 commissions, got %d", len(records))
	}

	if !records[0].Amount.Equal(money("12500")) {
		t.Errorf("sales manager commission %s, want 12500", records[0].Amount)
	}
	if !records[1].Amount.Equal(money("5000")) {
		t.Errorf("account manager commission %s, want 5000", records[1].Amount)
	}
	for i, c := range records {
		if c.Status != finance.CommissionPending {
			t.Errorf("record %d: status %s, want pending", i, c.Status)
		}
		if c.DealID != deal.ID {
			t.Errorf("record %d: deal %s", i, c.DealID)
		}
	}
	if records[0].Trigger != finance.TriggerDealClosed {
		t.Errorf("first trigger %s", records[0].Trigger)
	}
	if records[1].Trigger != finance.TriggerPaymentReceived {
		t.Errorf("second trigger %s", records[1].Trigger)
	}
}

func TestGenerateCommissions_AutoApprove(t *testing.T) {
	// Auto-approval applies only to deal_closed commissions; payment-triggered
	// ones still wait for their installment.
	deal, transition := wonDeal("100000")
	records, err := finance.GenerateCommissions(deal, transition, standardTable(),
		finance.CommissionPolicy{AutoApproveOnClose: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Status != finance.CommissionApproved {
		t.Errorf("deal_closed status %s, want approved", records[0].Status)
	}
	if records[1].Status != finance.CommissionPending {
		t.Errorf("payment_received status %s, want pending", records[1].Status)
	}
}

func TestGenerateCommissions_NonClosureEdges_Rejected(t *testing.T) {
	// GIVEN: Transitions that are not the edge into won
	// WHEN: Generating commissions
	// THEN: ErrInvalidState, never a silent empty batch

	deal, _ := wonDeal("250000")
	edges := []finance.StageTransition{
		{DealID: deal.ID, From: finance.StageLead, To: finance.StageProposal},
		{DealID: deal.ID, From: finance.StageNegotiation, To: finance.StageLost},
		{DealID: deal.ID, From: finance.StageWon, To: finance.StageWon}, // replay
	}
	for _, edge := range edges {
		_, err := finance.GenerateCommissions(deal, edge, standardTable(), finance.CommissionPolicy{})
		if !errors.Is(err, finance.ErrInvalidState) {
			t.Errorf("edge %s -> %s: expected ErrInvalidState, got %v", edge.From, edge.To, err)
		}
	}
}

func TestGenerateCommissions_EmptyTable(t *testing.T) {
	deal, transition := wonDeal("250000")
	records, err := finance.GenerateCommissions(deal, transition, nil, finance.CommissionPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no commissions, got %d", len(records))
	}
}

func TestGenerateCommissions_BadTable(t *testing.T) {
	deal, transition := wonDeal("250000")

	over := finance.BeneficiaryTable{{
		BeneficiaryID: "ben_x", Role: "x",
		Percent: decimal.NewFromInt(101),
		Trigger: finance.TriggerDealClosed,
	}}
	if _, err := finance.GenerateCommissions(deal, transition, over, finance.CommissionPolicy{}); !errors.Is(err, finance.ErrInvalidInput) {
		t.Errorf("percent over 100: expected ErrInvalidInput, got %v", err)
	}

	badTrigger := finance.BeneficiaryTable{{
		BeneficiaryID: "ben_x", Role: "x",
		Percent: decimal.NewFromInt(5),
		Trigger: finance.TriggerEvent("on_full_moon"),
	}}
	if _, err := finance.GenerateCommissions(deal, transition, badTrigger, finance.CommissionPolicy{}); !errors.Is(err, finance.ErrInvalidInput) {
		t.Errorf("unknown trigger: expected ErrInvalidInput, got %v", err)
	}
}

// =============================================================================
// STATUS TRANSITION TESTS
// =============================================================================

func TestNextStatus_Matrix(t *testing.T) {
	cases := []struct {
		from    finance.CommissionStatus
		to      finance.CommissionStatus
		allowed bool
	}{
		{finance.CommissionPending, finance.CommissionApproved, true},
		{finance.CommissionPending, finance.CommissionCancelled, true},
		{finance.CommissionPending, finance.CommissionPaid, false}, // must approve first
		{finance.CommissionApproved, finance.CommissionPaid, true},
		{finance.CommissionApproved, finance.CommissionCancelled, true},
		{finance.CommissionApproved, finance.CommissionApproved, false}, // repeat is an error
		{finance.CommissionPaid, finance.CommissionPaid, false},
		{finance.CommissionPaid, finance.CommissionCancelled, false}, // paid is terminal
		{finance.CommissionCancelled, finance.CommissionApproved, false},
		{finance.CommissionCancelled, finance.CommissionCancelled, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			c := finance.CommissionRecord{ID: "com_test", Status: tc.from}
			err := finance.NextStatus(c, tc.to)
			if tc.allowed && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tc.allowed {
				if !errors.Is(err, finance.ErrInvalidState) {
					t.Errorf("expected ErrInvalidState, got %v", err)
				}
				var ite *finance.InvalidTransitionError
				if !errors.As(err, &ite) {
					t.Errorf("expected InvalidTransitionError, got %T", err)
				}
			}
		})
	}
}
