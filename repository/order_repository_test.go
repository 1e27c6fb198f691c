package repository_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/repository"
	"github.com/kendall-kelly/manuorder-api/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func thisYear() int {
	return time.Now().UTC().Year()
}

func newOrder(customer *models.User, notes string) *models.Order {
	return &models.Order{
		CustomerNotes: notes,
		CustomerID:    customer.ID,
	}
}

func TestOrderRepository_Create(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	order := newOrder(customer, "Need 50 brackets")
	order.DesignFiles = []models.DesignFile{
		{FileName: "bracket.pdf", FileURL: "/uploads/1-bracket.pdf", FileType: "application/pdf"},
		{FileName: "bracket.step", FileURL: "/uploads/2-bracket.step", FileType: "application/step"},
	}
	require.NoError(t, repo.Create(ctx, order))

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.FormatOrderNumber(thisYear(), 1), order.OrderNumber)
	assert.Equal(t, models.StatusPendingQuote, order.Status)
	assert.Equal(t, 1, order.Version)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Need 50 brackets", loaded.CustomerNotes)
	assert.Equal(t, customer.Email, loaded.Customer.Email)
	require.Len(t, loaded.DesignFiles, 2)
	for _, f := range loaded.DesignFiles {
		assert.Equal(t, order.ID, f.OrderID)
	}
	assert.Nil(t, loaded.Quotation)

	second := newOrder(customer, "Need 10 hinges")
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, models.FormatOrderNumber(thisYear(), 2), second.OrderNumber)
}

func TestOrderRepository_CreateUsesCreationYear(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	old := newOrder(customer, "Last year's order")
	old.CreatedAt = time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, old))

	next := newOrder(customer, "New year's order")
	next.CreatedAt = time.Date(2025, time.January, 1, 1, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, next))

	assert.Equal(t, "ORD-2024-0001", old.OrderNumber)
	assert.Equal(t, "ORD-2025-0001", next.OrderNumber, "sequence resets every year")
}

func TestOrderRepository_CreateConcurrentNumbersAreUnique(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")

	const n = 10
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order := newOrder(customer, "concurrent order")
			errs[i] = repo.Create(context.Background(), order)
			numbers[i] = order.OrderNumber
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Strings(numbers)
	for i, number := range numbers {
		assert.Equal(t, models.FormatOrderNumber(thisYear(), int64(i+1)), number)
	}
}

func TestOrderRepository_CreateRetriesOnCollision(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")

	// Rows imported without going through the counter
	testutil.CreateOrder(t, db, customer, models.FormatOrderNumber(thisYear(), 1), models.StatusPendingQuote)
	testutil.CreateOrder(t, db, customer, models.FormatOrderNumber(thisYear(), 2), models.StatusPendingQuote)

	order := newOrder(customer, "after import")
	require.NoError(t, repo.Create(context.Background(), order))
	assert.Equal(t, models.FormatOrderNumber(thisYear(), 3), order.OrderNumber)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestOrderRepository_FindByIDNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	alice := testutil.CreateCustomer(t, db, "alice", "Alice Smith")
	bob := testutil.CreateCustomer(t, db, "bob", "Bob Jones")
	ctx := context.Background()

	a1 := newOrder(alice, "a1")
	a1.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, a1))
	b1 := newOrder(bob, "b1")
	b1.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, b1))
	a2 := newOrder(alice, "a2")
	require.NoError(t, repo.Create(ctx, a2))
	require.NoError(t, db.Model(a2).Update("status", models.StatusInDesign).Error)

	tests := []struct {
		name   string
		filter repository.OrderFilter
		want   []string
	}{
		{"all newest first", repository.OrderFilter{}, []string{a2.ID, b1.ID, a1.ID}},
		{"by customer", repository.OrderFilter{CustomerID: alice.ID}, []string{a2.ID, a1.ID}},
		{"by status", repository.OrderFilter{Status: models.StatusPendingQuote}, []string{b1.ID, a1.ID}},
		{"customer and status", repository.OrderFilter{CustomerID: alice.ID, Status: models.StatusInDesign}, []string{a2.ID}},
		{"search customer name", repository.OrderFilter{Search: "jones"}, []string{b1.ID}},
		{"search customer email", repository.OrderFilter{Search: "ALICE@"}, []string{a2.ID, a1.ID}},
		{"search order number", repository.OrderFilter{Search: a1.OrderNumber}, []string{a1.ID}},
		{"no match", repository.OrderFilter{Search: "nobody"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(orders))
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestOrderRepository_UpdateSetStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	order := newOrder(customer, "status test")
	require.NoError(t, repo.Create(ctx, order))

	updated, err := repo.Update(ctx, order.ID, func(tx repository.OrderTx, o *models.Order) error {
		return tx.SetStatus(o, models.StatusInDesign)
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInDesign, updated.Status)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, customer.ID, updated.Customer.ID, "reloaded with associations")

	// Writing the same status does not bump the version
	updated, err = repo.Update(ctx, order.ID, func(tx repository.OrderTx, o *models.Order) error {
		return tx.SetStatus(o, models.StatusInDesign)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func TestOrderRepository_UpdateMissingOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)

	called := false
	_, err := repo.Update(context.Background(), "missing", func(tx repository.OrderTx, o *models.Order) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.False(t, called)
}

func TestOrderRepository_UpdateRollsBackOnError(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	order := newOrder(customer, "rollback test")
	require.NoError(t, repo.Create(ctx, order))

	boom := errors.New("status write failed")
	_, err := repo.Update(ctx, order.ID, func(tx repository.OrderTx, o *models.Order) error {
		q := &models.Quotation{Amount: decimal.RequireFromString("99.00"), Details: "partial"}
		if err := tx.CreateQuotation(o, q); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Quotation{}).Count(&count).Error)
	assert.Zero(t, count, "quotation insert must roll back with the failed status write")

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingQuote, loaded.Status)
}

func TestOrderRepository_CreateQuotationTwiceIsDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	order := newOrder(customer, "quotation test")
	require.NoError(t, repo.Create(ctx, order))

	create := func(tx repository.OrderTx, o *models.Order) error {
		q := &models.Quotation{Amount: decimal.RequireFromString("1200.00"), Details: "material+labor"}
		if err := tx.CreateQuotation(o, q); err != nil {
			return err
		}
		return tx.SetStatus(o, models.StatusPendingApproval)
	}

	updated, err := repo.Update(ctx, order.ID, create)
	require.NoError(t, err)
	require.NotNil(t, updated.Quotation)
	assert.True(t, updated.Quotation.Amount.Equal(decimal.RequireFromString("1200.00")))
	assert.Equal(t, models.DefaultCurrency, updated.Quotation.Currency)
	assert.Equal(t, models.StatusPendingApproval, updated.Status)

	_, err = repo.Update(ctx, order.ID, create)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestOrderRepository_SetQuotationAcceptance(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	order := testutil.CreateOrder(t, db, customer, "ORD-2026-0001", models.StatusPendingApproval)
	testutil.CreateQuotation(t, db, order, "1200.00", nil)

	updated, err := repo.Update(ctx, order.ID, func(tx repository.OrderTx, o *models.Order) error {
		require.NotNil(t, o.Quotation, "quotation is loaded inside the transaction")
		return tx.SetQuotationAcceptance(o.Quotation, false)
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Quotation.IsAccepted)
	assert.False(t, *updated.Quotation.IsAccepted)
}

func TestOrderRepository_ListRevenueOrders(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	ctx := context.Background()

	paid := testutil.CreateOrder(t, db, customer, "ORD-2026-0001", models.StatusCompleted)
	testutil.CreateQuotation(t, db, paid, "100.10", testutil.Bool(true))

	oldPaid := testutil.CreateOrder(t, db, customer, "ORD-2026-0002", models.StatusCompleted)
	testutil.CreateQuotation(t, db, oldPaid, "50.00", testutil.Bool(true))
	require.NoError(t, db.Model(oldPaid).UpdateColumn("created_at", time.Now().UTC().AddDate(-2, 0, 0)).Error)

	notAccepted := testutil.CreateOrder(t, db, customer, "ORD-2026-0003", models.StatusCompleted)
	testutil.CreateQuotation(t, db, notAccepted, "75.00", testutil.Bool(false))

	inProgress := testutil.CreateOrder(t, db, customer, "ORD-2026-0004", models.StatusInPainting)
	testutil.CreateQuotation(t, db, inProgress, "80.00", testutil.Bool(true))

	testutil.CreateOrder(t, db, customer, "ORD-2026-0005", models.StatusCompleted)

	all, err := repo.ListRevenueOrders(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, oldPaid.ID, all[0].ID, "oldest first")
	assert.Equal(t, paid.ID, all[1].ID)
	require.NotNil(t, all[1].Quotation)
	assert.True(t, all[1].Quotation.Amount.Equal(decimal.RequireFromString("100.10")))
	assert.Equal(t, "Alice Customer", all[1].Customer.Name)

	since := time.Now().UTC().AddDate(-1, 0, 0)
	recent, err := repo.ListRevenueOrders(ctx, &since)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, paid.ID, recent[0].ID)
}

func TestOrderRepository_CountByStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")

	testutil.CreateOrder(t, db, customer, "ORD-2026-0001", models.StatusPendingQuote)
	testutil.CreateOrder(t, db, customer, "ORD-2026-0002", models.StatusPendingQuote)
	testutil.CreateOrder(t, db, customer, "ORD-2026-0003", models.StatusCompleted)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.StatusPendingQuote])
	assert.Equal(t, int64(1), counts[models.StatusCompleted])
	assert.Zero(t, counts[models.StatusRejected])
}

func TestOrderRepository_StaleVersion(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db, nil)
	customer := testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	order := testutil.CreateOrder(t, db, customer, "ORD-2026-0001", models.StatusInDesign)

	_, err := repo.Update(context.Background(), order.ID, func(tx repository.OrderTx, o *models.Order) error {
		// Version the caller read before another writer got in
		o.Version = 7
		return tx.SetStatus(o, models.StatusInManufacturing)
	})
	assert.ErrorIs(t, err, repository.ErrStale)
}
