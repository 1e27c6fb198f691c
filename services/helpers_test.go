package services

import (
	"testing"

	"github.com/kendall-kelly/manuorder-api/apperror"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/repository"
	"github.com/kendall-kelly/manuorder-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	orders    repository.OrderRepository
	publisher *RecordingPublisher

	customer      *models.User
	otherCustomer *models.User
	admin         *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	return &fixture{
		db:            db,
		orders:        repository.NewOrderRepository(db, nil),
		publisher:     &RecordingPublisher{},
		customer:      testutil.CreateCustomer(t, db, "cust1", "Alice Customer"),
		otherCustomer: testutil.CreateCustomer(t, db, "cust2", "Bob Customer"),
		admin:         testutil.CreateAdmin(t, db, "admin1"),
	}
}

func actorFor(user *models.User) *policy.Actor {
	return &policy.Actor{UserID: user.ID, Role: user.Role, Name: user.Name}
}

func assertAppError(t *testing.T, err error, kind apperror.Kind, code string) {
	t.Helper()

	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, kind, appErr.Kind, "unexpected kind for %v", err)
	if code != "" {
		assert.Equal(t, code, appErr.Code)
	}
}
