package testutil

import (
	"strings"
	"testing"

	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with every model
// migrated. The pool is capped at one connection so the whole database
// lives on it and concurrent transactions queue like row locks would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig(logger.Silent))
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db), "Failed to migrate test database")

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser inserts a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, auth0ID, name string, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   strings.TrimPrefix(auth0ID, "auth0|") + "@example.com",
		Role:    role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCustomer inserts a CUSTOMER named name with auth0 id "auth0|<key>"
func CreateCustomer(t *testing.T, db *gorm.DB, key, name string) *models.User {
	t.Helper()
	return CreateUser(t, db, "auth0|"+key, name, models.RoleCustomer)
}

// CreateAdmin inserts an ADMIN with auth0 id "auth0|<key>"
func CreateAdmin(t *testing.T, db *gorm.DB, key string) *models.User {
	t.Helper()
	return CreateUser(t, db, "auth0|"+key, "Admin "+key, models.RoleAdmin)
}

// CreateOrder inserts an order directly, bypassing number allocation
func CreateOrder(t *testing.T, db *gorm.DB, customer *models.User, number string, status models.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber:   number,
		CustomerNotes: "Test order " + number,
		Status:        status,
		CustomerID:    customer.ID,
	}
	require.NoError(t, db.Omit("Customer", "Quotation").Create(order).Error)
	return order
}

// CreateQuotation attaches a quotation to order. accepted may be nil.
func CreateQuotation(t *testing.T, db *gorm.DB, order *models.Order, amount string, accepted *bool) *models.Quotation {
	t.Helper()

	q := &models.Quotation{
		OrderID:    order.ID,
		Amount:     decimal.RequireFromString(amount),
		Currency:   models.DefaultCurrency,
		Details:    "material+labor",
		IsAccepted: accepted,
	}
	require.NoError(t, db.Create(q).Error)
	return q
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return &b
}
