package core

// CategoryTotal is the absolute spend of one category inside a date window.
type CategoryTotal struct {
	Category  string `json:"category"`
	AmountSum Money  `json:"amount_sum"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MonthlyTotal is the absolute spend of one calendar month.
type MonthlyTotal struct {
	AmountSum       Money  `json:"amount_sum"`
	TransactionDate string `json:"transaction_date"`
	Month           string `json:"month_date"` // MM/YYYY
}

// NeedsWantsTotal is the absolute spend of one needs/wants/savings bucket.
type NeedsWantsTotal struct {
	AmountSum  Money      `json:"amount_sum"`
	NeedsWants NeedsWants `json:"needs_wants_savings"`
}
