package service

import (
	"fmt"
	"os"
	"sort"

	"ebike-booking/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RatePlan is one model's financing row
type RatePlan struct {
	Key            string                  `json:"key"`
	DisplayName    string                  `json:"displayName"`
	SRP            decimal.Decimal         `json:"srp"`
	MinDownPayment decimal.Decimal         `json:"minDownPayment"`
	Monthly        map[int]decimal.Decimal `json:"monthly"`
}

// Months lists the terms this plan offers, ascending
func (p RatePlan) Months() []int {
	months := make([]int, 0, len(p.Monthly))
	for m := range p.Monthly {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}

// RateTable resolves a requested model to its financing row
type RateTable struct {
	plans   map[string]RatePlan
	aliases map[string]string
}

type rateFile struct {
	Models []struct {
		Key            string          `yaml:"key"`
		Name           string          `yaml:"name"`
		SRP            float64         `yaml:"srp"`
		MinDownPayment float64         `yaml:"min_down_payment"`
		Monthly        map[int]float64 `yaml:"monthly"`
		Aliases        []string        `yaml:"aliases"`
	} `yaml:"models"`
}

// NewRateTable builds a table; aliases map free-text names to plan keys
func NewRateTable(plans []RatePlan, aliases map[string]string) *RateTable {
	t := &RateTable{
		plans:   make(map[string]RatePlan, len(plans)),
		aliases: make(map[string]string),
	}
	for _, p := range plans {
		t.plans[p.Key] = p
		t.aliases[models.NormalizeLabel(p.Key)] = p.Key
		if p.DisplayName != "" {
			t.aliases[models.NormalizeLabel(p.DisplayName)] = p.Key
		}
	}
	for alias, key := range aliases {
		t.aliases[models.NormalizeLabel(alias)] = key
	}
	return t
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// DefaultRateTable is the built-in price list
func DefaultRateTable() *RateTable {
	plans := []RatePlan{
		{
			Key: "ECONO350_MINI_II", DisplayName: "ECONO350 MINI-II",
			SRP: money(39000), MinDownPayment: money(1600),
			Monthly: map[int]decimal.Decimal{6: money(7150), 12: money(4098), 18: money(2899), 24: money(2299)},
		},
		{
			Key: "ECONO500_MP", DisplayName: "ECONO500 MP",
			SRP: money(51000), MinDownPayment: money(2100),
			Monthly: map[int]decimal.Decimal{6: money(9350), 12: money(5359), 18: money(3791), 24: money(3007)},
		},
		{
			Key: "ECONO500_MP_II", DisplayName: "ECONO500 MP-II",
			SRP: money(51000), MinDownPayment: money(2100),
			Monthly: map[int]decimal.Decimal{6: money(9350), 12: money(5359), 18: money(3791), 24: money(3007)},
		},
		{
			Key: "ECONO650_MP", DisplayName: "ECONO650 MP",
			SRP: money(58000), MinDownPayment: money(2400),
			Monthly: map[int]decimal.Decimal{6: money(10630), 12: money(6094), 18: money(4311), 24: money(3420)},
		},
		{
			Key: "ECONO800_MP", DisplayName: "ECONO800 MP",
			SRP: money(68000), MinDownPayment: money(2800),
			Monthly: map[int]decimal.Decimal{12: money(7145), 18: money(5055), 24: money(4010)},
		},
	}
	aliases := map[string]string{
		"econo 350 mini ii": "ECONO350_MINI_II",
		"econo350 mini 2":   "ECONO350_MINI_II",
		"mini ii":           "ECONO350_MINI_II",
		"econo 500 mp":      "ECONO500_MP",
		"econo 500 mp ii":   "ECONO500_MP_II",
		"econo 650 mp":      "ECONO650_MP",
		"econo 800 mp":      "ECONO800_MP",
	}
	return NewRateTable(plans, aliases)
}

// LoadRateTable reads a YAML price list
func LoadRateTable(path string) (*RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table: %w", err)
	}
	return ParseRateTable(data)
}

// ParseRateTable decodes the YAML price list format
func ParseRateTable(data []byte) (*RateTable, error) {
	var f rateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("rate table has no models")
	}

	plans := make([]RatePlan, 0, len(f.Models))
	aliases := make(map[string]string)
	for _, m := range f.Models {
		if m.Key == "" || m.SRP <= 0 {
			return nil, fmt.Errorf("rate table entry %q needs a key and a positive srp", m.Name)
		}
		p := RatePlan{
			Key:            m.Key,
			DisplayName:    m.Name,
			SRP:            decimal.NewFromFloat(m.SRP).Round(2),
			MinDownPayment: decimal.NewFromFloat(m.MinDownPayment).Round(2),
			Monthly:        make(map[int]decimal.Decimal, len(m.Monthly)),
		}
		for months, amount := range m.Monthly {
			p.Monthly[months] = decimal.NewFromFloat(amount).Round(2)
		}
		for _, a := range m.Aliases {
			aliases[a] = m.Key
		}
		plans = append(plans, p)
	}
	return NewRateTable(plans, aliases), nil
}

// Lookup matches by normalised model name first, then by a unique SRP
func (t *RateTable) Lookup(model string, srp decimal.Decimal) (RatePlan, error) {
	if key, ok := t.aliases[models.NormalizeLabel(model)]; ok {
		if p, ok := t.plans[key]; ok {
			return p, nil
		}
	}

	if srp.IsPositive() {
		var matches []RatePlan
		for _, p := range t.plans {
			if p.SRP.Equal(srp) {
				matches = append(matches, p)
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
		if len(matches) > 1 {
			return RatePlan{}, validationError("plan_not_available",
				"installment plan for %q is ambiguous; several models are priced at %s", model, srp.StringFixed(2))
		}
	}

	return RatePlan{}, validationError("plan_not_available", "no installment plan is available for %q", model)
}

// Quote is the installment wizard's view of one plan
type Quote struct {
	Model          string          `json:"model"`
	SRP            decimal.Decimal `json:"srp"`
	MinDownPayment decimal.Decimal `json:"minDownPayment"`
	Terms          []QuoteTerm     `json:"terms"`
}

// QuoteTerm is one months/monthly pair
type QuoteTerm struct {
	MonthsToPay         int             `json:"monthsToPay"`
	MonthlyAmortization decimal.Decimal `json:"monthlyAmortization"`
	TotalPayable        decimal.Decimal `json:"totalPayable"`
}

// Quote lists the terms of a plan restricted to allowed months
func (p RatePlan) Quote(allowed []int) Quote {
	q := Quote{Model: p.DisplayName, SRP: p.SRP, MinDownPayment: p.MinDownPayment}
	for _, m := range p.Months() {
		if !containsInt(allowed, m) {
			continue
		}
		monthly := p.Monthly[m]
		q.Terms = append(q.Terms, QuoteTerm{
			MonthsToPay:         m,
			MonthlyAmortization: monthly,
			TotalPayable:        monthly.Mul(decimal.NewFromInt(int64(m))).Add(p.MinDownPayment).Round(2),
		})
	}
	return q
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
