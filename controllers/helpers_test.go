package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/repository"
	"github.com/kendall-kelly/manuorder-api/services"
	"github.com/kendall-kelly/manuorder-api/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if !testutil.SetTestEnvironment() {
		os.Exit(1)
	}
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	os.Exit(m.Run())
}

// testEnv wires every service to a fresh database and in-memory stores
type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	orders        repository.OrderRepository
	store         *services.MockBlobStore
	local         *services.LocalBlobStore
	publisher     *services.RecordingPublisher
	customer      *models.User
	otherCustomer *models.User
	admin         *models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	config.SetDB(db)

	env := &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		orders:    repository.NewOrderRepository(db, repository.NewDBSequence()),
		store:     services.NewMockBlobStore(),
		local:     services.NewLocalBlobStore(t.TempDir()),
		publisher: &services.RecordingPublisher{},
	}
	services.InitOrderService(env.orders, env.publisher)
	services.InitQuotationService(env.orders, env.publisher)
	services.InitReportService(env.orders)
	services.InitUploadService(env.store)
	services.InitUserService(env.users, nil)
	services.SetLocalBlobStore(env.local)

	env.customer = testutil.CreateCustomer(t, db, "cust1", "Alice Customer")
	env.otherCustomer = testutil.CreateCustomer(t, db, "cust2", "Bob Customer")
	env.admin = testutil.CreateAdmin(t, db, "admin1")
	return env
}

// router mounts the API handlers behind a fake token for auth0ID. An empty
// auth0ID sends requests without a token.
func (e *testEnv) router(auth0ID, role string) *gin.Engine {
	router := gin.New()
	router.GET("/uploads/:filename", GetUploadedFile)

	v1 := router.Group("/api/v1")
	v1.GET("/health", HealthCheck)
	v1.GET("/database/status", DatabaseStatus)

	authed := v1.Group("", testutil.MockAuth(auth0ID, role))
	authed.POST("/users", CreateUser)
	authed.GET("/users/me", GetMyProfile)
	authed.PUT("/users/me", UpdateMyProfile)

	api := authed.Group("", middleware.RequireActor(e.users))
	api.POST("/orders", CreateOrder)
	api.GET("/orders", ListOrders)
	api.GET("/orders/:id", GetOrder)
	api.PUT("/orders/:id", UpdateOrderStatus)
	api.POST("/orders/:id/quotation", CreateQuotation)
	api.PUT("/orders/:id/quotation", RespondToQuotation)
	api.POST("/uploads", UploadFile)
	api.GET("/files/*key", GetFile)
	api.GET("/reports/revenue", GetRevenueReport)
	api.GET("/reports/summary", GetDashboardSummary)
	return router
}

func (e *testEnv) as(user *models.User) *gin.Engine {
	return e.router(user.Auth0ID, string(user.Role))
}

// performRequest sends body as JSON unless it is nil or already a reader
func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

// errorCode returns error.code of an error envelope
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, false, response["success"])
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "missing error object: %s", w.Body.String())
	return errObj["code"].(string)
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, true, response["success"], "body: %s", w.Body.String())
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %s", w.Body.String())
	return data
}
