package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/services"
	"github.com/kendall-kelly/manuorder-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	env := setupTestEnv(t)
	year := time.Now().UTC().Year()

	tests := []struct {
		name           string
		auth0ID        string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, data map[string]interface{})
	}{
		{
			name:    "Successfully create order as customer",
			auth0ID: env.customer.Auth0ID,
			requestBody: map[string]interface{}{
				"customer_notes": "Steel bracket, 4 mounting holes",
				"design_files": []map[string]interface{}{
					{"file_name": "bracket.dwg", "file_url": "/api/v1/files/uploads%2Fbracket.dwg", "file_type": "application/dwg"},
				},
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, fmt.Sprintf("ORD-%d-0001", year), data["order_number"])
				assert.Equal(t, "PENDING_QUOTE", data["status"])
				assert.Equal(t, "Steel bracket, 4 mounting holes", data["customer_notes"])
				assert.Equal(t, env.customer.ID, data["customer_id"])
				assert.Equal(t, float64(1), data["version"])
				assert.Nil(t, data["quotation"])

				customer := data["customer"].(map[string]interface{})
				assert.Equal(t, "Alice Customer", customer["name"])

				files := data["design_files"].([]interface{})
				require.Len(t, files, 1)
				assert.Equal(t, "bracket.dwg", files[0].(map[string]interface{})["file_name"])
			},
		},
		{
			name:           "Admins cannot create orders",
			auth0ID:        env.admin.Auth0ID,
			requestBody:    map[string]interface{}{"customer_notes": "Steel bracket"},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:           "Admin with malformed body is still forbidden",
			auth0ID:        env.admin.Auth0ID,
			requestBody:    map[string]interface{}{},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:    "Fail with design file outside the upload area",
			auth0ID: env.customer.Auth0ID,
			requestBody: map[string]interface{}{
				"customer_notes": "Steel bracket",
				"design_files":   []map[string]interface{}{{"file_name": "x.pdf", "file_url": "https://evil.example/x.pdf"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_FILE_URL",
		},
		{
			name:           "Fail with missing customer notes",
			auth0ID:        env.customer.Auth0ID,
			requestBody:    map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:    "Fail with design file without url",
			auth0ID: env.customer.Auth0ID,
			requestBody: map[string]interface{}{
				"customer_notes": "Steel bracket",
				"design_files":   []map[string]interface{}{{"file_name": "bracket.dwg"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Fail without token",
			auth0ID:        "",
			requestBody:    map[string]interface{}{"customer_notes": "Steel bracket"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "UNAUTHORIZED",
		},
		{
			name:           "Fail without local profile",
			auth0ID:        "auth0|stranger",
			requestBody:    map[string]interface{}{"customer_notes": "Steel bracket"},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "PROFILE_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := env.router(tt.auth0ID, "CUSTOMER")
			w := performRequest(router, http.MethodPost, "/api/v1/orders", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, responseData(t, w))
			}
		})
	}

	assert.Equal(t, []services.EventType{services.EventOrderCreated}, env.publisher.Types())
}

func TestCreateOrder_SequentialNumbers(t *testing.T) {
	env := setupTestEnv(t)
	router := env.as(env.customer)
	prefix := models.OrderNumberPrefix(time.Now().UTC().Year())

	for i := 1; i <= 3; i++ {
		w := performRequest(router, http.MethodPost, "/api/v1/orders", map[string]interface{}{
			"customer_notes": fmt.Sprintf("Order %d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, fmt.Sprintf("%s%04d", prefix, i), responseData(t, w)["order_number"])
	}
}

func listOrders(t *testing.T, router *gin.Engine, path string) []interface{} {
	t.Helper()

	w := performRequest(router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	response := decodeResponse(t, w)
	orders, ok := response["data"].([]interface{})
	require.True(t, ok, "data is not a list: %s", w.Body.String())
	return orders
}

func TestListOrders(t *testing.T) {
	env := setupTestEnv(t)
	testutil.CreateOrder(t, env.db, env.customer, "ORD-2026-0001", models.StatusPendingQuote)
	testutil.CreateOrder(t, env.db, env.customer, "ORD-2026-0002", models.StatusInDesign)
	testutil.CreateOrder(t, env.db, env.otherCustomer, "ORD-2026-0003", models.StatusInDesign)

	t.Run("Customer sees only own orders", func(t *testing.T) {
		orders := listOrders(t, env.as(env.customer), "/api/v1/orders")
		require.Len(t, orders, 2)
		for _, o := range orders {
			assert.Equal(t, env.customer.ID, o.(map[string]interface{})["customer_id"])
		}
	})

	t.Run("Admin sees every order", func(t *testing.T) {
		assert.Len(t, listOrders(t, env.as(env.admin), "/api/v1/orders"), 3)
	})

	t.Run("Admin filters by status", func(t *testing.T) {
		orders := listOrders(t, env.as(env.admin), "/api/v1/orders?status=IN_DESIGN")
		assert.Len(t, orders, 2)
	})

	t.Run("Admin searches by customer name", func(t *testing.T) {
		orders := listOrders(t, env.as(env.admin), "/api/v1/orders?search=bob")
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-2026-0003", orders[0].(map[string]interface{})["order_number"])
	})

	t.Run("Customer cannot list another customer's orders", func(t *testing.T) {
		w := performRequest(env.as(env.customer), http.MethodGet, "/api/v1/orders?customer_id="+env.otherCustomer.ID, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "NOT_OWNER", errorCode(t, w))
	})

	t.Run("Unknown status filter", func(t *testing.T) {
		w := performRequest(env.as(env.admin), http.MethodGet, "/api/v1/orders?status=SHIPPED", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATUS", errorCode(t, w))
	})
}

func TestGetOrder(t *testing.T) {
	env := setupTestEnv(t)
	order := testutil.CreateOrder(t, env.db, env.customer, "ORD-2026-0001", models.StatusPendingQuote)

	tests := []struct {
		name           string
		user           *models.User
		orderID        string
		expectedStatus int
		expectedError  string
	}{
		{"Owner reads order", env.customer, order.ID, http.StatusOK, ""},
		{"Admin reads any order", env.admin, order.ID, http.StatusOK, ""},
		{"Other customer is refused", env.otherCustomer, order.ID, http.StatusForbidden, "NOT_OWNER"},
		{"Unknown order", env.admin, "00000000-0000-0000-0000-000000000000", http.StatusNotFound, "ORDER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(env.as(tt.user), http.MethodGet, "/api/v1/orders/"+tt.orderID, nil)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
				return
			}
			data := responseData(t, w)
			assert.Equal(t, order.ID, data["id"])
			assert.Equal(t, "ORD-2026-0001", data["order_number"])
		})
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	env := setupTestEnv(t)
	order := testutil.CreateOrder(t, env.db, env.customer, "ORD-2026-0001", models.StatusInDesign)
	path := "/api/v1/orders/" + order.ID

	w := performRequest(env.as(env.admin), http.MethodPut, path, map[string]interface{}{
		"status":  "IN_MANUFACTURING",
		"version": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := responseData(t, w)
	assert.Equal(t, "IN_MANUFACTURING", data["status"])
	assert.Equal(t, float64(2), data["version"])
	assert.Equal(t, []services.EventType{services.EventOrderStatusChanged}, env.publisher.Types())

	tests := []struct {
		name           string
		user           *models.User
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
	}{
		{"Stale version", env.admin, map[string]interface{}{"status": "IN_TESTING", "version": 1}, http.StatusConflict, "VERSION_MISMATCH"},
		{"Skipping a stage", env.admin, map[string]interface{}{"status": "COMPLETED"}, http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"Moving backwards", env.admin, map[string]interface{}{"status": "IN_DESIGN"}, http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"Unknown status", env.admin, map[string]interface{}{"status": "SHIPPED"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Missing status", env.admin, map[string]interface{}{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Customer cannot change status", env.customer, map[string]interface{}{"status": "IN_TESTING"}, http.StatusForbidden, "FORBIDDEN"},
		{"Customer with unknown status", env.customer, map[string]interface{}{"status": "SHIPPED"}, http.StatusForbidden, "FORBIDDEN"},
		{"Customer with empty body", env.customer, map[string]interface{}{}, http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(env.as(tt.user), http.MethodPut, path, tt.requestBody)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedError, errorCode(t, w))
		})
	}

	var stored models.Order
	require.NoError(t, env.db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, models.StatusInManufacturing, stored.Status)
	assert.Equal(t, 2, stored.Version)
}

func TestUpdateOrderStatus_UnknownOrder(t *testing.T) {
	env := setupTestEnv(t)

	w := performRequest(env.as(env.admin), http.MethodPut, "/api/v1/orders/missing", map[string]interface{}{
		"status": "IN_MANUFACTURING",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", errorCode(t, w))
	assert.False(t, strings.Contains(w.Body.String(), "record not found"))
}
