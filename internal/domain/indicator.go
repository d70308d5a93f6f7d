package domain

// KeyFinancialIndicator is the fixed vector of financial-health indicators derived
// from the full transaction set of one ingestion run.
type KeyFinancialIndicator struct {
	MonthlyIncome                 float64 `json:"monthly_income"`
	MonthlyExpenses               float64 `json:"monthly_expenses"`
	NetMonthlyIncome              float64 `json:"net_monthly_income"`
	IncomeCoefficientOfVariation  float64 `json:"income_coefficient_of_variation"`
	ExpenseCoefficientOfVariation float64 `json:"expense_coefficient_of_variation"`
	SavingsRate                   float64 `json:"savings_rate"`
	AverageAccountBalance         float64 `json:"average_account_balance"`
	LiquidityRatio                float64 `json:"liquidity_ratio"`
	NumberOfOverdrafts            int     `json:"number_of_overdrafts"`
	IncomeStabilityScore          float64 `json:"income_stability_score"`
	ExpenseStabilityScore         float64 `json:"expense_stability_score"`
	SavingsRateScore              float64 `json:"savings_rate_score"`
	LiquidityRatioScore           float64 `json:"liquidity_ratio_score"`
	OverdraftPenaltyScore         float64 `json:"overdraft_penalty_score"`
}
