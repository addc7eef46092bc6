package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/subscription"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/response"
)

type Subscriptions interface {
	Onboard(ctx context.Context, req *subscription.OnboardRequest) (*subscription.OnboardResult, error)
	Cancel(ctx context.Context, id, reason string) (*models.Subscription, error)
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// @Summary      Submit Onboarding
// @Description  Creates a pending subscription for the chosen service and assigns a coach.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body subscription.OnboardRequest true "Onboarding submission"
// @Success      200  {object}  handlers.RespOnboard
// @Router       /api/v1/onboarding/subscriptions [post]
func ApiOnboard(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.OnboardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Onboard(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Cancel Subscription
// @Description  Stops recurring billing and keeps access until the grace period ends.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body handlers.CancelSubscriptionRequest false "Cancellation reason"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/cancel [post]
func ApiCancelSubscription(svc Subscriptions, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
		sub, err := svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc Subscriptions, log *zap.SugaredLogger) {
	r.POST("/onboarding/subscriptions", ApiOnboard(svc, log))
	r.POST("/subscriptions/:id/cancel", ApiCancelSubscription(svc, log))
}
