package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/services"
	"github.com/shopspring/decimal"
)

// CreateQuotationRequest represents the request body for quoting an order.
// Amount accepts a JSON number or string.
type CreateQuotationRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"omitempty,iso4217"`
	Details  string          `json:"details" binding:"required"`
}

// RespondQuotationRequest carries the customer's answer
type RespondQuotationRequest struct {
	IsAccepted *bool `json:"is_accepted" binding:"required"`
}

// CreateQuotation handles POST /api/v1/orders/:id/quotation (admins only)
func CreateQuotation(c *gin.Context) {
	if !authorizeRole(c, "createQuotation", policy.ActionCreateQuotation) {
		return
	}

	var req CreateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := services.GetQuotationService().CreateQuotation(c.Request.Context(), middleware.GetActor(c), c.Param("id"), services.CreateQuotationInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		Details:  req.Details,
	})
	if err != nil {
		respondError(c, "createQuotation", err)
		return
	}
	respondOK(c, http.StatusCreated, order)
}

// RespondToQuotation handles PUT /api/v1/orders/:id/quotation - the order's
// customer accepts or rejects the quotation
func RespondToQuotation(c *gin.Context) {
	if !authorizeRole(c, "respondToQuotation", policy.ActionRespondQuotation) {
		return
	}

	var req RespondQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := services.GetQuotationService().RespondToQuotation(c.Request.Context(), middleware.GetActor(c), c.Param("id"), *req.IsAccepted)
	if err != nil {
		respondError(c, "respondToQuotation", err)
		return
	}
	respondOK(c, http.StatusOK, order)
}
