package core

// MonthSummary is everything the dashboard shows for one month.
type MonthSummary struct {
	Year    int
	Month0  int // 0-11
	Income  Money
	Expense Money
	Balance Money
	// Total is the all-time running balance, not month-scoped.
	Total Money
	Items []Transaction
}
