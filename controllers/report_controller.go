package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/policy"
	"github.com/kendall-kelly/manuorder-api/services"
)

// GetRevenueReport handles GET /api/v1/reports/revenue?period= (admins only)
func GetRevenueReport(c *gin.Context) {
	if !authorizeRole(c, "revenueReport", policy.ActionViewReports) {
		return
	}

	period, err := services.ParsePeriod(c.Query("period"))
	if err != nil {
		respondError(c, "revenueReport", err)
		return
	}

	report, err := services.GetReportService().Revenue(c.Request.Context(), middleware.GetActor(c), period)
	if err != nil {
		respondError(c, "revenueReport", err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

// GetDashboardSummary handles GET /api/v1/reports/summary (admins only)
func GetDashboardSummary(c *gin.Context) {
	if !authorizeRole(c, "dashboardSummary", policy.ActionViewReports) {
		return
	}

	summary, err := services.GetReportService().Summary(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, "dashboardSummary", err)
		return
	}
	respondOK(c, http.StatusOK, summary)
}
