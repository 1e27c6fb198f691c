package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/services"
)

// DesignFileRequest references a file returned by POST /api/v1/uploads
type DesignFileRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileURL  string `json:"file_url" binding:"required"`
	FileType string `json:"file_type"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	CustomerNotes string              `json:"customer_notes" binding:"required"`
	DesignFiles   []DesignFileRequest `json:"design_files" binding:"omitempty,dive"`
}

// UpdateOrderStatusRequest represents the request body for a status change.
// Version, when sent, must equal the order's current version.
type UpdateOrderStatusRequest struct {
	Status  models.OrderStatus `json:"status" binding:"required,order_status"`
	Version *int               `json:"version" binding:"omitempty,gte=1"`
}

// ListOrdersQuery holds the optional listing filters
type ListOrdersQuery struct {
	Status     string `form:"status"`
	Search     string `form:"search"`
	CustomerID string `form:"customer_id"`
}

// CreateOrder handles POST /api/v1/orders - creates a new order (customers only)
func CreateOrder(c *gin.Context) {
	if !authorizeRole(c, "createOrder", policy.ActionCreateOrder) {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	input := services.CreateOrderInput{
		CustomerNotes: req.CustomerNotes,
		DesignFiles:   make([]services.DesignFileInput, 0, len(req.DesignFiles)),
	}
	for _, f := range req.DesignFiles {
		input.DesignFiles = append(input.DesignFiles, services.DesignFileInput{
			FileName: f.FileName,
			FileURL:  f.FileURL,
			FileType: f.FileType,
		})
	}

	order, err := services.GetOrderService().CreateOrder(c.Request.Context(), middleware.GetActor(c), input)
	if err != nil {
		respondError(c, "createOrder", err)
		return
	}
	respondOK(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - customers see their own orders,
// admins see all of them
func ListOrders(c *gin.Context) {
	if !authorizeRole(c, "listOrders", policy.ActionListOrders) {
		return
	}

	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	orders, err := services.GetOrderService().ListOrders(c.Request.Context(), middleware.GetActor(c), services.ListOrdersInput{
		Status:     query.Status,
		Search:     query.Search,
		CustomerID: query.CustomerID,
	})
	if err != nil {
		respondError(c, "listOrders", err)
		return
	}
	respondOK(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	order, err := services.GetOrderService().GetOrder(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		respondError(c, "readOrder", err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id - moves an order along
// the manufacturing pipeline (admins only)
func UpdateOrderStatus(c *gin.Context) {
	if !authorizeRole(c, "updateStatus", policy.ActionUpdateStatus) {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := services.GetOrderService().UpdateStatus(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.Status, req.Version)
	if err != nil {
		respondError(c, "updateStatus", err)
		return
	}
	respondOK(c, http.StatusOK, order)
}
