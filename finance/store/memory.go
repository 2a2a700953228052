// Package store provides finance.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/expocrm/finance-engine/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	deals        map[finance.DealID]finance.Deal
	closures     map[finance.DealID]bool
	installments map[finance.InstallmentID]finance.PaymentInstallment
	commissions  map[finance.CommissionID]finance.CommissionRecord
}

func NewMemory() *Memory {
	return &Memory{
		deals:        make(map[finance.DealID]finance.Deal),
		closures:     make(map[finance.DealID]bool),
		installments: make(map[finance.InstallmentID]finance.PaymentInstallment),
		commissions:  make(map[finance.CommissionID]finance.CommissionRecord),
	}
}

// Compile-time check.
var _ finance.Store = (*Memory)(nil)

// =============================================================================
// DEALS
// =============================================================================

func (m *Memory) SaveDeal(_ context.Context, deal finance.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[deal.ID] = deal
	return nil
}

func (m *Memory) GetDeal(_ context.Context, id finance.DealID) (*finance.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	deal, ok := m.deals[id]
	if !ok {
		return nil, fmt.Errorf("deal %s: %w", id, finance.ErrNotFound)
	}
	return &deal, nil
}

func (m *Memory) IsDealClosed(_ context.Context, id finance.DealID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closures[id], nil
}

// SaveClosure records the deal, the closure marker, and both record
// batches under one lock acquisition, so the write is all-or-nothing.
func (m *Memory) SaveClosure(_ context.Context, deal finance.Deal, installments []finance.PaymentInstallment, commissions []finance.CommissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closures[deal.ID] {
		return fmt.Errorf("deal %s: %w", deal.ID, finance.ErrAlreadyClosed)
	}

	m.deals[deal.ID] = deal
	m.closures[deal.ID] = true
	for _, ins := range installments {
		m.installments[ins.ID] = ins
	}
	for _, c := range commissions {
		m.commissions[c.ID] = c
	}
	return nil
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func (m *Memory) GetInstallment(_ context.Context, id finance.InstallmentID) (*finance.PaymentInstallment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ins, ok := m.installments[id]
	if !ok {
		return nil, fmt.Errorf("installment %s: %w", id, finance.ErrNotFound)
	}
	return &ins, nil
}

func (m *Memory) ListInstallments(_ context.Context, filter finance.InstallmentFilter) ([]finance.PaymentInstallment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.PaymentInstallment
	for _, ins := range m.installments {
		if filter.Matches(ins) {
			result = append(result, ins)
		}
	}
	// Stable order: deal, then sequence.
	sort.Slice(result, func(i, j int) bool {
		if result[i].DealID != result[j].DealID {
			return result[i].DealID < result[j].DealID
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}

func (m *Memory) UpdateInstallment(_ context.Context, ins finance.PaymentInstallment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.installments[ins.ID]; !ok {
		return fmt.Errorf("installment %s: %w", ins.ID, finance.ErrNotFound)
	}
	m.installments[ins.ID] = ins
	return nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

func (m *Memory) GetCommission(_ context.Context, id finance.CommissionID) (*finance.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commissions[id]
	if !ok {
		return nil, fmt.Errorf("commission %s: %w", id, finance.ErrNotFound)
	}
	return &c, nil
}

func (m *Memory) ListCommissions(_ context.Context, filter finance.CommissionFilter) ([]finance.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.CommissionRecord
	for _, c := range m.commissions {
		if filter.Matches(c) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SwapCommission implements the optimistic check-then-set under the write
// lock: the stored status must still match expect or the caller lost a race.
func (m *Memory) SwapCommission(_ context.Context, expect finance.CommissionStatus, c finance.CommissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.commissions[c.ID]
	if !ok {
		return fmt.Errorf("commission %s: %w", c.ID, finance.ErrNotFound)
	}
	if current.Status != expect {
		return &finance.InvalidTransitionError{CommissionID: c.ID, From: current.Status, To: c.Status}
	}
	m.commissions[c.ID] = c
	return nil
}
