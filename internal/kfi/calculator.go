// Package kfi derives the key financial indicator vector from a transaction set.
package kfi

import (
	"math"
	"sort"

	"github.com/dvloznov/statement-kfi/internal/domain"
)

// overdraftLimit is the overdraft count at which the penalty score reaches 0.
const overdraftLimit = 5

type month struct {
	year  int
	month int
}

func (m month) less(o month) bool {
	if m.year != o.year {
		return m.year < o.year
	}
	return m.month < o.month
}

// Calculate computes the indicator vector for txs. Only transactions typed
// exactly credit or debit take part in income and expense figures; every
// transaction counts towards months, balances and overdrafts. All float fields
// of the result are finite.
func Calculate(txs []domain.Transaction) domain.KeyFinancialIndicator {
	if len(txs) == 0 {
		return domain.KeyFinancialIndicator{}
	}

	allMonths := make(map[month]struct{})
	income := make(map[month]float64)
	expenses := make(map[month]float64)

	var totalCredits, totalDebits, balanceSum float64
	overdrafts := 0

	for _, tx := range txs {
		m := month{year: tx.Date.Year, month: int(tx.Date.Month)}
		allMonths[m] = struct{}{}

		amount := finite(tx.Amount)
		balance := finite(tx.Balance)

		if tx.TransactionType.Known() {
			if tx.TransactionType == domain.Credit {
				income[m] += amount
				totalCredits += amount
			} else {
				expenses[m] += amount
				totalDebits += amount
			}
		}

		balanceSum += balance
		if balance < 0 {
			overdrafts++
		}
	}

	months := float64(len(allMonths))
	var mi, me float64
	if months > 0 {
		mi = totalCredits / months
		me = totalDebits / months
	}

	var sr float64
	if totalCredits+totalDebits > 0 {
		sr = totalCredits / (totalCredits + totalDebits)
	}

	avgBalance := balanceSum / float64(len(txs))

	var lr float64
	if me != 0 {
		lr = avgBalance / me
	}

	incomeSeries, expenseSeries := monthlySeries(income, expenses)
	incomeCV := coefficientOfVariation(incomeSeries)
	expenseCV := coefficientOfVariation(expenseSeries)

	liquidityScore := 0.0
	if lr >= 0 {
		liquidityScore = math.Min(lr/2, 1)
	}

	return domain.KeyFinancialIndicator{
		MonthlyIncome:                 finite(mi),
		MonthlyExpenses:               finite(me),
		NetMonthlyIncome:              finite(mi - me),
		IncomeCoefficientOfVariation:  finite(incomeCV),
		ExpenseCoefficientOfVariation: finite(expenseCV),
		SavingsRate:                   finite(sr),
		AverageAccountBalance:         finite(avgBalance),
		LiquidityRatio:                finite(lr),
		NumberOfOverdrafts:            overdrafts,
		IncomeStabilityScore:          finite(stabilityScore(incomeCV)),
		ExpenseStabilityScore:         finite(stabilityScore(expenseCV)),
		SavingsRateScore:              finite(sr),
		LiquidityRatioScore:           finite(liquidityScore),
		OverdraftPenaltyScore:         finite(OverdraftPenalty(overdrafts)),
	}
}

// OverdraftPenalty maps an overdraft count to [0,1]: 1 with no overdrafts, 0 at
// five or more.
func OverdraftPenalty(n int) float64 {
	if n < 0 {
		n = 0
	}
	return 1 - math.Min(float64(n)/overdraftLimit, 1)
}

// monthlySeries lines income and expense totals up over the union of months
// present on either side, in calendar order, with 0 for a missing side.
func monthlySeries(income, expenses map[month]float64) ([]float64, []float64) {
	keys := make([]month, 0, len(income)+len(expenses))
	seen := make(map[month]struct{}, len(income)+len(expenses))
	for _, side := range []map[month]float64{income, expenses} {
		for m := range side {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				keys = append(keys, m)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	in := make([]float64, len(keys))
	out := make([]float64, len(keys))
	for i, m := range keys {
		in[i] = income[m]
		out[i] = expenses[m]
	}
	return in, out
}

// coefficientOfVariation is the sample standard deviation over the mean. It is
// 0 when the mean is 0 and NaN when the series is too short to have a sample
// deviation.
func coefficientOfVariation(series []float64) float64 {
	avg := mean(series)
	if avg == 0 {
		return 0
	}
	return sampleStdDev(series, avg) / avg
}

func stabilityScore(cv float64) float64 {
	if cv == 0 {
		return 1
	}
	return 1 / (1 + cv)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdDev(xs []float64, avg float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	var ss float64
	for _, x := range xs {
		d := x - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
