package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/payment"
	"github.com/fatflowers/coachpay/internal/app/service/payout"
	"github.com/fatflowers/coachpay/internal/app/service/statistics"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/response"
)

type Payouts interface {
	Run(ctx context.Context, month string) (*payout.Result, error)
	List(ctx context.Context, month string) ([]*models.MonthlyCoachPayment, error)
}

type PaymentScanner interface {
	Scan(ctx context.Context, req *payment.ScanRequest) (*payment.ScanResponse, error)
}

type Statistics interface {
	GetStatistics(ctx context.Context, req *statistics.Request) (*statistics.Response, error)
}

type RunPayoutsRequest struct {
	Month string `json:"month" binding:"required" example:"2025-03"`
}

// @Summary      Run Payouts (Admin)
// @Description  Recomputes and stores coach payouts for a month. Safe to re-run.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.RunPayoutsRequest true "Month to compute"
// @Success      200  {object}  handlers.RespPayoutRun
// @Router       /api/v1/admin/payouts/run [post]
func ApiRunPayouts(svc Payouts, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunPayoutsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Run(c.Request.Context(), req.Month)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Payouts (Admin)
// @Description  Returns the stored payout rows of a month.
// @Tags         Admin
// @Produce      json
// @Param        month query string true "Month as YYYY-MM"
// @Success      200  {object}  handlers.RespPayoutList
// @Router       /api/v1/admin/payouts [get]
func ApiListPayouts(svc Payouts, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		month := c.Query("month")
		if month == "" {
			badRequest(c, errors.New("missing month"))
			return
		}
		rows, err := svc.List(c.Request.Context(), month)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of the payments ledger.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payment.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespPaymentList
// @Router       /api/v1/admin/payments/list [post]
func ApiListPayments(svc PaymentScanner, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		for _, f := range req.Filters {
			if err := f.Validate(); err != nil {
				badRequest(c, err)
				return
			}
		}
		res, err := svc.Scan(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Statistics (Admin)
// @Description  Computes the requested reporting series.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.Request true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistics
// @Router       /api/v1/admin/statistics [post]
func ApiGetStatistics(svc Statistics, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		for _, f := range req.Filters {
			if err := f.Validate(); err != nil {
				badRequest(c, err)
				return
			}
		}
		res, err := svc.GetStatistics(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, payouts Payouts, payments PaymentScanner, stats Statistics, log *zap.SugaredLogger) {
	r.POST("/payouts/run", ApiRunPayouts(payouts, log))
	r.GET("/payouts", ApiListPayouts(payouts, log))
	r.POST("/payments/list", ApiListPayments(payments, log))
	r.POST("/statistics", ApiGetStatistics(stats, log))
}
