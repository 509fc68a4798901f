package pricing

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wellness-admin/internal/model"
)

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name     string
		base     int64
		discount float64
		want     int64
	}{
		{"no discount", 100000, 0, 100000},
		{"fifteen percent", 100000, 15, 85000},
		{"fractional percent", 1000, 12.5, 875},
		{"floors remainder", 100, 33.33, 66},
		{"odd base", 99999, 10, 89999},
		{"full discount", 50000, 100, 0},
		{"zero base", 0, 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FinalPrice(tt.base, tt.discount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFinalPriceRejectsBadInput(t *testing.T) {
	_, err := FinalPrice(-1, 0)
	assert.ErrorIs(t, err, ErrNegativePrice)

	for _, d := range []float64{-0.1, 100.01, math.NaN()} {
		_, err := FinalPrice(1000, d)
		assert.ErrorIs(t, err, ErrDiscountRange)
	}
}

func TestFinalPriceMatchesIntegerFloor(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		base := r.Int63n(10_000_000)
		d := r.Intn(101)
		got, err := FinalPrice(base, float64(d))
		require.NoError(t, err)
		want := base * int64(100-d) / 100
		require.Equal(t, want, got, "base=%d discount=%d", base, d)
		require.GreaterOrEqual(t, got, int64(0))
		require.LessOrEqual(t, got, base)
	}
}

func TestPaymentBalance(t *testing.T) {
	p := Payment{CardAmount: 50000, CashAmount: 20000}
	b := p.Balance(85000)
	assert.Equal(t, int64(70000), b.Paid)
	assert.Equal(t, int64(15000), b.Unpaid)
	assert.False(t, b.Overpaid())
	assert.Equal(t, b.Final, b.Paid+b.Unpaid)

	over := Payment{CashAmount: 90000}.Balance(85000)
	assert.Equal(t, int64(-5000), over.Unpaid)
	assert.True(t, over.Overpaid())
}

func TestPaymentValidate(t *testing.T) {
	assert.NoError(t, Payment{}.Validate())
	assert.ErrorIs(t, Payment{CashAmount: -1}.Validate(), ErrNegativeAmount)
	assert.ErrorIs(t, Payment{Installment: true, InstallmentMonths: 3}.Validate(), ErrInstallmentNoCard)
	assert.ErrorIs(t, Payment{CardAmount: 10, Installment: true, InstallmentMonths: 1}.Validate(), ErrInstallmentMonths)
	assert.NoError(t, Payment{CardAmount: 10, Installment: true, InstallmentMonths: 12}.Validate())

	assert.Equal(t, 0, Payment{CardAmount: 10, InstallmentMonths: 6}.InstallmentCount())
	assert.Equal(t, 6, Payment{CardAmount: 10, Installment: true, InstallmentMonths: 6}.InstallmentCount())
}

func TestSelectPolicy(t *testing.T) {
	countProduct := model.TicketProduct{
		Kind: model.TicketKindCount, UsableCnt: 10, UsableDays: 30,
		LimitType: model.LimitWeek, LimitCnt: 2,
	}

	pol, err := SelectPolicy(countProduct, PolicyOverride{})
	require.NoError(t, err)
	assert.Equal(t, UsagePolicy{UsableCnt: 10, UsableDays: 30, LimitType: model.LimitWeek, LimitCnt: 2}, pol)

	cnt := 20
	none := model.LimitNone
	pol, err = SelectPolicy(countProduct, PolicyOverride{UsableCnt: &cnt, LimitType: &none})
	require.NoError(t, err)
	assert.Equal(t, 20, pol.UsableCnt)
	assert.Equal(t, model.LimitNone, pol.LimitType)
	assert.Zero(t, pol.LimitCnt)

	periodProduct := countProduct
	periodProduct.Kind = model.TicketKindPeriod
	_, err = SelectPolicy(periodProduct, PolicyOverride{UsableCnt: &cnt})
	assert.ErrorIs(t, err, ErrCountNotEditable)

	bogus := model.LimitType("DAY")
	_, err = SelectPolicy(countProduct, PolicyOverride{LimitType: &bogus})
	assert.ErrorIs(t, err, ErrUnknownLimitType)

	zero := 0
	month := model.LimitMonth
	_, err = SelectPolicy(countProduct, PolicyOverride{LimitType: &month, LimitCnt: &zero})
	assert.ErrorIs(t, err, ErrLimitCount)
}

func TestDefaultPolicyWithoutLimit(t *testing.T) {
	pol := DefaultPolicy(model.TicketProduct{UsableCnt: 5, LimitCnt: 3})
	assert.Equal(t, model.LimitNone, pol.LimitType)
	assert.Zero(t, pol.LimitCnt)
}

func TestDefaultPeriod(t *testing.T) {
	today := time.Date(2024, 1, 30, 14, 12, 0, 0, time.UTC)
	p := DefaultPeriod(model.TicketProduct{UsableDays: 30}, today)
	require.True(t, p.Complete())
	assert.Equal(t, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), *p.Start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), *p.End)
	assert.False(t, Period{Start: p.Start}.Complete())
}
