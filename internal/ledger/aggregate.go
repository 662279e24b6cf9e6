package ledger

import "kakeibo/internal/core"

// InMonth returns the transactions dated in year and 0-based month0,
// preserving order.
func InMonth(txs []core.Transaction, year, month0 int) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Date.InMonth(year, month0) {
			out = append(out, t)
		}
	}
	return out
}

// SumType totals the amounts of one transaction type.
func SumType(txs []core.Transaction, typ core.TransactionType) core.Money {
	var sum core.Money
	for _, t := range txs {
		if t.Type == typ {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}

// Balance is income minus expense over txs.
func Balance(txs []core.Transaction) core.Money {
	var bal core.Money
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			bal = bal.Add(t.Amount)
		case core.Expense:
			bal = bal.Sub(t.Amount)
		}
	}
	return bal
}

// Summarize computes the month view over a full transaction list.
func Summarize(all []core.Transaction, year, month0 int) core.MonthSummary {
	items := InMonth(all, year, month0)
	income := SumType(items, core.Income)
	expense := SumType(items, core.Expense)
	return core.MonthSummary{
		Year:    year,
		Month0:  month0,
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
		Total:   Balance(all),
		Items:   items,
	}
}
