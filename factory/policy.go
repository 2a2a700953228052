/*
Package factory provides JSON to Go finance-policy conversion.

PURPOSE:
  Converts JSON policy documents into finance.SplitPolicy,
  finance.BeneficiaryTable, and finance.CommissionPolicy values. This
  enables per-deal-type policy configuration without code changes -
  the finance team can define a different split or commission table in
  JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify policies
  - Easy integration with an admin UI
  - Version control for policy definitions
  - Database storage of policy configs

JSON SCHEMA:
  {
    "id": "standard-booth",
    "name": "Standard booth contract",
    "split": [
      {"fraction": "0.30", "offset_days": 0,  "kind": "initial"},
      {"fraction": "0.40", "offset_days": 30, "kind": "progress"},
      {"fraction": "0.30", "offset_days": 60, "kind": "final"}
    ],
    "beneficiaries": [
      {"beneficiary_id": "emp-7", "name": "Dana", "role": "Sales Manager",
       "percent": "5", "trigger": "deal_closed"},
      {"beneficiary_id": "emp-9", "name": "Riley", "role": "Account Manager",
       "percent": "2", "trigger": "payment_received"}
    ],
    "auto_approve_on_close": true
  }

USAGE:
  factory := NewPolicyFactory()
  cfg, err := factory.ParseConfig(jsonString)
  // cfg.Split, cfg.Beneficiaries, cfg.Commission feed Service.CloseDeal

SEE ALSO:
  - finance/schedule.go: SplitPolicy semantics and validation
  - finance/commission.go: BeneficiaryTable semantics and validation
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/expocrm/finance-engine/finance"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of a deal-type finance policy.
type ConfigJSON struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Split              []SplitStepJSON   `json:"split"`
	Beneficiaries      []BeneficiaryJSON `json:"beneficiaries,omitempty"`
	AutoApproveOnClose bool              `json:"auto_approve_on_close,omitempty"`
}

// SplitStepJSON represents one installment slice. Fractions are decimal
// strings so 0.30 + 0.40 + 0.30 sums to exactly 1.
type SplitStepJSON struct {
	Fraction   string `json:"fraction"`
	OffsetDays int    `json:"offset_days"`
	Kind       string `json:"kind"`
}

// BeneficiaryJSON represents one commission rule.
type BeneficiaryJSON struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Percent       string `json:"percent"`
	Trigger       string `json:"trigger"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// Config bundles the parsed policy values for one deal type.
type Config struct {
	ID            string
	Name          string
	Split         finance.SplitPolicy
	Beneficiaries finance.BeneficiaryTable
	Commission    finance.CommissionPolicy
}

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParseConfig parses a JSON document into a validated Config.
func (f *PolicyFactory) ParseConfig(jsonStr string) (*Config, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to a validated Config.
func (f *PolicyFactory) FromJSON(cj ConfigJSON) (*Config, error) {
	split := finance.SplitPolicy{Name: cj.Name}
	for i, sj := range cj.Split {
		fraction, err := decimal.NewFromString(sj.Fraction)
		if err != nil {
			return nil, fmt.Errorf("%w: split step %d fraction %q", finance.ErrInvalidInput, i+1, sj.Fraction)
		}
		kind, err := parseKind(sj.Kind)
		if err != nil {
			return nil, err
		}
		split.Steps = append(split.Steps, finance.SplitStep{
			Fraction:   fraction,
			OffsetDays: sj.OffsetDays,
			Kind:       kind,
		})
	}
	if err := split.Validate(); err != nil {
		return nil, err
	}

	var table finance.BeneficiaryTable
	for i, bj := range cj.Beneficiaries {
		percent, err := decimal.NewFromString(bj.Percent)
		if err != nil {
			return nil, fmt.Errorf("%w: beneficiary %d percent %q", finance.ErrInvalidInput, i+1, bj.Percent)
		}
		table = append(table, finance.BeneficiaryRule{
			BeneficiaryID:   finance.BeneficiaryID(bj.BeneficiaryID),
			BeneficiaryName: bj.Name,
			Role:            bj.Role,
			Percent:         percent,
			Trigger:         finance.TriggerEvent(bj.Trigger),
		})
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		ID:            cj.ID,
		Name:          cj.Name,
		Split:         split,
		Beneficiaries: table,
		Commission:    finance.CommissionPolicy{AutoApproveOnClose: cj.AutoApproveOnClose},
	}, nil
}

func parseKind(s string) (finance.InstallmentKind, error) {
	switch finance.InstallmentKind(s) {
	case finance.KindInitial, finance.KindProgress, finance.KindFinal, finance.KindFull:
		return finance.InstallmentKind(s), nil
	default:
		return "", fmt.Errorf("%w: unknown installment kind %q", finance.ErrInvalidInput, s)
	}
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardConfigJSON returns the default 30/40/30 policy document with the
// given beneficiary rules, handy for seeding and tests.
func StandardConfigJSON(id, name string, beneficiaries []BeneficiaryJSON) string {
	cfg := ConfigJSON{
		ID:   id,
		Name: name,
		Split: []SplitStepJSON{
			{Fraction: "0.30", OffsetDays: 0, Kind: "initial"},
			{Fraction: "0.40", OffsetDays: 30, Kind: "progress"},
			{Fraction: "0.30", OffsetDays: 60, Kind: "final"},
		},
		Beneficiaries: beneficiaries,
	}
	out, _ := json.Marshal(cfg)
	return string(out)
}
