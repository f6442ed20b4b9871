package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTableLookupByAlias(t *testing.T) {
	table := DefaultRateTable()

	for _, name := range []string{"ECONO350 MINI-II", "econo350_mini_ii", "Econo 350 Mini II", " mini-ii "} {
		plan, err := table.Lookup(name, decimal.Zero)
		require.NoError(t, err, name)
		assert.Equal(t, "ECONO350_MINI_II", plan.Key)
	}
}

func TestRateTableLookupBySRP(t *testing.T) {
	table := DefaultRateTable()

	plan, err := table.Lookup("unknown", decimal.NewFromInt(58000))
	require.NoError(t, err)
	assert.Equal(t, "ECONO650_MP", plan.Key)

	_, err = table.Lookup("unknown", decimal.NewFromInt(51000))
	requireKind(t, err, ErrValidation, "plan_not_available")

	_, err = table.Lookup("unknown", decimal.NewFromInt(12345))
	requireKind(t, err, ErrValidation, "plan_not_available")
}

func TestParseRateTable(t *testing.T) {
	data := []byte(`
models:
  - key: CITY_GLIDE
    name: City Glide 300
    srp: 45000
    min_down_payment: 1800.50
    monthly:
      6: 8100
      12: 4650.25
    aliases:
      - glide
`)
	table, err := ParseRateTable(data)
	require.NoError(t, err)

	plan, err := table.Lookup("GLIDE", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "1800.50", plan.MinDownPayment.StringFixed(2))
	assert.Equal(t, "4650.25", plan.Monthly[12].StringFixed(2))
	assert.Equal(t, []int{6, 12}, plan.Months())

	_, err = ParseRateTable([]byte("models: []"))
	assert.Error(t, err)
	_, err = ParseRateTable([]byte("models:\n  - name: nokey\n    srp: 1"))
	assert.Error(t, err)
}

func TestQuoteRestrictsToAllowedMonths(t *testing.T) {
	plan, err := DefaultRateTable().Lookup("ECONO350 MINI-II", decimal.Zero)
	require.NoError(t, err)

	q := plan.Quote([]int{12, 24})
	require.Len(t, q.Terms, 2)
	assert.Equal(t, 12, q.Terms[0].MonthsToPay)
	assert.Equal(t, "50776.00", q.Terms[0].TotalPayable.StringFixed(2))
}
