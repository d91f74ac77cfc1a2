package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dosh/internal/core"
	"dosh/internal/filter"
)

type seedRow struct {
	date, desc string
	cents      int64
	category   string
	account    string
	tag        core.NeedsWants
}

var seedRows = []seedRow{
	{"2011-01-05", "TESCO GROCERIES", -2550, "Food:Groceries", "HSBC", core.Needs},
	{"2011-01-10", "SALARY", 200000, "Income", "HSBC", core.Exempt},
	{"2011-01-15", "TRANSFER TO SAVINGS", -50000, "Transfers", "HSBC", core.Savings},
	{"2011-02-02", "CINEMA", -1200, "Entertainment", "Egg", core.Wants},
	{"2011-02-03", "RENT", -150000, "Housing", "HSBC", core.Needs},
	{"2011-02-10", "REFUND SHOP", 3000, "Refunds", "Egg", core.Wants},
	{"2011-02-12", "Weekly groceries", -4000, "Food:Groceries", "Egg", core.Needs},
	{"2011-03-01", "Big TV", -120000, "Shopping", "Egg", core.Wants},
}

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "dosh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// seed inserts seedRows and returns their ids keyed by description.
func seed(t *testing.T, repo *SQLiteRepository) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	ids := make(map[string]int64, len(seedRows))
	for _, r := range seedRows {
		id, err := repo.Insert(ctx, core.Transaction{
			Date:        r.date,
			Description: r.desc,
			Amount:      core.Money{Cents: r.cents},
			Category:    r.category,
			Account:     r.account,
			NeedsWants:  r.tag,
		})
		require.NoError(t, err)
		require.NotZero(t, id)
		ids[r.desc] = id
	}
	return ids
}

func idsOf(txs []core.Transaction) []int64 {
	out := make([]int64, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func descriptions(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Description
	}
	return out
}

func TestPageWithoutFilterReturnsEverythingNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	txs, err := repo.Page(ctx, filter.Filter{}, 0, 100)
	require.NoError(t, err)
	require.Equal(t, []string{
		"Big TV", "Weekly groceries", "REFUND SHOP", "RENT", "CINEMA",
		"TRANSFER TO SAVINGS", "SALARY", "TESCO GROCERIES",
	}, descriptions(txs))

	n, err := repo.Count(ctx, filter.Filter{})
	require.NoError(t, err)
	require.Equal(t, len(seedRows), n)

	page, err := repo.Page(ctx, filter.Filter{}, 2, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"REFUND SHOP", "RENT", "CINEMA"}, descriptions(page))
}

func TestPageFilters(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	tests := []struct {
		name string
		f    filter.Filter
		want []string
	}{
		{"category prefix", filter.Filter{Category: "Food"}, []string{"Weekly groceries", "TESCO GROCERIES"}},
		{"account", filter.Filter{Account: "Egg", ExpensesOnly: true}, []string{"Big TV", "Weekly groceries", "CINEMA"}},
		{"sentinels", filter.Filter{Category: core.AllCategories, Account: core.AllAccounts, Range: filter.MustParse("literal:2011-03-01:2011-03-31")}, []string{"Big TV"}},
		{"needs", filter.Filter{NeedsWants: core.Needs, Account: "HSBC"}, []string{"RENT", "TESCO GROCERIES"}},
		{"like wildcards are literal", filter.Filter{Category: "%"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := repo.Page(ctx, tt.f, 0, 25)
			require.NoError(t, err)
			require.Equal(t, tt.want, descriptions(txs))

			n, err := repo.Count(ctx, tt.f)
			require.NoError(t, err)
			require.Equal(t, len(tt.want), n)
		})
	}
}

func TestUpdateCategoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ids := seed(t, repo)
	ctx := context.Background()

	n, err := repo.UpdateCategory(ctx, ids["CINEMA"], "Fun")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	tx, err := repo.Transaction(ctx, ids["CINEMA"])
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, "Fun", tx.Category)
	require.Equal(t, int64(-1200), tx.Amount.Cents)

	n, err = repo.UpdateCategory(ctx, 9999, "Fun")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteRemovesRow(t *testing.T) {
	repo := newTestRepo(t)
	ids := seed(t, repo)
	ctx := context.Background()

	n, err := repo.Delete(ctx, ids["RENT"])
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	tx, err := repo.Transaction(ctx, ids["RENT"])
	require.NoError(t, err)
	require.Nil(t, tx)

	page, err := repo.Page(ctx, filter.Filter{}, 0, 500)
	require.NoError(t, err)
	require.Len(t, page, len(seedRows)-1)
	require.NotContains(t, idsOf(page), ids["RENT"])

	count, err := repo.Count(ctx, filter.Filter{Category: "Housing"})
	require.NoError(t, err)
	require.Zero(t, count)

	found, err := repo.Search(ctx, "rent")
	require.NoError(t, err)
	require.NotContains(t, idsOf(found), ids["RENT"])

	found, err = repo.Search(ctx, "<-1000")
	require.NoError(t, err)
	require.Equal(t, []string{"Big TV"}, descriptions(found))

	since, err := repo.TransactionsSince(ctx, nil, "")
	require.NoError(t, err)
	require.NotContains(t, idsOf(since), ids["RENT"])

	n, err = repo.Delete(ctx, ids["RENT"])
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestInsertIgnoresDuplicateFingerprint(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	id, err := repo.Insert(ctx, core.Transaction{
		Date:        "2011-01-05",
		Description: "TESCO  GROCERIES",
		Amount:      core.Money{Cents: -2550},
		Account:     "HSBC",
	})
	require.NoError(t, err)
	require.Zero(t, id)

	_, err = repo.Insert(ctx, core.Transaction{Date: "bad", Description: "x", Account: "HSBC"})
	require.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestSearch(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	tests := []struct {
		criteria string
		want     []string
	}{
		{"<-1000", []string{"Big TV", "RENT"}},
		{">1000", []string{"SALARY"}},
		{"=-12", []string{"CINEMA"}},
		{"groceries", []string{"Weekly groceries", "TESCO GROCERIES"}},
		{"income", []string{"SALARY"}},
		{"50%", []string{}},
		{"", []string{"Big TV", "Weekly groceries", "REFUND SHOP", "RENT", "CINEMA", "TRANSFER TO SAVINGS", "SALARY", "TESCO GROCERIES"}},
	}
	for _, tt := range tests {
		t.Run(tt.criteria, func(t *testing.T) {
			txs, err := repo.Search(ctx, tt.criteria)
			require.NoError(t, err)
			require.Equal(t, tt.want, descriptions(txs))
		})
	}

	_, err := repo.Search(ctx, "<lots")
	require.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestSearchIsCapped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	day := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	const rows = SearchLimit + 50
	for i := 0; i < rows; i++ {
		_, err := repo.Insert(ctx, core.Transaction{
			Date:        day.AddDate(0, 0, i).Format(core.DateLayout),
			Description: fmt.Sprintf("coffee %d", i),
			Amount:      core.Money{Cents: -250},
			Category:    "Food:Coffee",
			Account:     "HSBC",
		})
		require.NoError(t, err)
	}

	txs, err := repo.Search(ctx, "COFFEE")
	require.NoError(t, err)
	require.Len(t, txs, SearchLimit)
	require.Equal(t, fmt.Sprintf("coffee %d", rows-1), txs[0].Description)
	require.Equal(t, fmt.Sprintf("coffee %d", rows-SearchLimit), txs[len(txs)-1].Description)
	for i := 1; i < len(txs); i++ {
		require.Greater(t, txs[i-1].Date, txs[i].Date)
	}
}

func TestTopExpenseCategories(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()
	f := filter.Filter{Range: filter.MustParse("literal:2011-01-01:2011-12-31")}

	got, err := repo.TopExpenseCategories(ctx, 8, f)
	require.NoError(t, err)
	require.Equal(t, []core.CategoryTotal{
		{Category: "Housing", AmountSum: core.Money{Cents: 150000}, StartDate: "2011-01-01", EndDate: "2011-12-31"},
		{Category: "Shopping", AmountSum: core.Money{Cents: 120000}, StartDate: "2011-01-01", EndDate: "2011-12-31"},
		{Category: "Food:Groceries", AmountSum: core.Money{Cents: 6550}, StartDate: "2011-01-01", EndDate: "2011-12-31"},
		{Category: "Entertainment", AmountSum: core.Money{Cents: 1200}, StartDate: "2011-01-01", EndDate: "2011-12-31"},
	}, got)

	top, err := repo.TopExpenseCategories(ctx, 2, f)
	require.NoError(t, err)
	require.Len(t, top, 2)

	whole, err := repo.TopExpenseCategories(ctx, 8, filter.Filter{Account: "Egg"})
	require.NoError(t, err)
	require.Len(t, whole, 3)
	require.Equal(t, "2011-01-05", whole[0].StartDate)
	require.Equal(t, "2011-03-01", whole[0].EndDate)
}

func TestMonthlySpending(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	got, err := repo.MonthlySpending(ctx, "", nil, false)
	require.NoError(t, err)
	require.Equal(t, []core.MonthlyTotal{
		{AmountSum: core.Money{Cents: 197450}, TransactionDate: "2011-01-05", Month: "01/2011"},
		{AmountSum: core.Money{Cents: 152200}, TransactionDate: "2011-02-02", Month: "02/2011"},
		{AmountSum: core.Money{Cents: 120000}, TransactionDate: "2011-03-01", Month: "03/2011"},
	}, got)

	food, err := repo.MonthlySpending(ctx, "Food", filter.MustParse("literal:2011-02-01:2011-02-28"), true)
	require.NoError(t, err)
	require.Equal(t, []core.MonthlyTotal{
		{AmountSum: core.Money{Cents: 4000}, TransactionDate: "2011-02-12", Month: "02/2011"},
	}, food)
}

func TestNeedsWantsSavingsExcludesExempt(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)

	got, err := repo.NeedsWantsSavings(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []core.NeedsWantsTotal{
		{AmountSum: core.Money{Cents: 156550}, NeedsWants: core.Needs},
		{AmountSum: core.Money{Cents: 50000}, NeedsWants: core.Savings},
		{AmountSum: core.Money{Cents: 118200}, NeedsWants: core.Wants},
	}, got)
}

func TestDistinctListsAreSortedAndStable(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	accounts, err := repo.Accounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Egg", "HSBC"}, accounts)

	again, err := repo.Accounts(ctx)
	require.NoError(t, err)
	require.Equal(t, accounts, again)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{
		"Entertainment", "Food:Groceries", "Housing", "Income", "Refunds", "Shopping", "Transfers",
	}, categories)

	groups, err := repo.Groups(ctx)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestTransactionsSinceAndGroups(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.AddToGroup(ctx, "Current", "HSBC"))
	require.NoError(t, repo.AddToGroup(ctx, "Current", "HSBC"))

	groups, err := repo.Groups(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Current"}, groups)

	txs, err := repo.TransactionsSince(ctx, filter.MustParse("literal:2011-02-01:2011-12-31"), "")
	require.NoError(t, err)
	require.Equal(t, []string{"Big TV", "Weekly groceries", "REFUND SHOP", "RENT", "CINEMA"}, descriptions(txs))

	current, err := repo.TransactionsSince(ctx, nil, "Current")
	require.NoError(t, err)
	require.Equal(t, []string{"RENT", "TRANSFER TO SAVINGS", "SALARY", "TESCO GROCERIES"}, descriptions(current))
}

func TestUpdateFingerprint(t *testing.T) {
	repo := newTestRepo(t)
	ids := seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.UpdateFingerprint(ctx, ids["SALARY"], "abc"))
	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(seedRows))
	for _, tx := range all {
		if tx.ID == ids["SALARY"] {
			require.Equal(t, "abc", tx.Fingerprint)
		} else {
			require.Equal(t, tx.ComputeFingerprint(), tx.Fingerprint)
		}
	}
}
