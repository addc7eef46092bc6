package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/statistics"
	"github.com/fatflowers/coachpay/internal/app/service/subscription"
	"github.com/fatflowers/coachpay/internal/app/service/verification"
	"github.com/fatflowers/coachpay/internal/platform/gateway"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/response"
	"github.com/fatflowers/coachpay/pkg/tool"
)

// rejection is the data of a rejected verification.
type rejection struct {
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// responseCode maps service errors to the envelope code.
func responseCode(err error) response.APIResponseCode {
	var verr *subscription.ValidationError
	switch {
	case errors.Is(err, verification.ErrRateLimited):
		return response.APIResponseCodeTooManyRequests
	case verification.IsRejection(err),
		errors.As(err, &verr),
		errors.Is(err, subscription.ErrUnknownService),
		errors.Is(err, subscription.ErrInvalidDiscount),
		errors.Is(err, subscription.ErrAlreadyCancelled),
		errors.Is(err, statistics.ErrUnknownStatistic),
		errors.Is(err, tool.ErrInvalidMonth):
		return response.APIResponseCodeBadRequest
	case errors.Is(err, verification.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, gateway.ErrUnexpectedStatus):
		return response.APIResponseCodeUpstream
	}
	return response.APIResponseCodeError
}

// writeError renders err in the standard envelope. Internal errors are
// logged with the request logger.
func writeError(c *gin.Context, base *zap.SugaredLogger, err error) {
	code := responseCode(err)
	var verr *subscription.ValidationError
	switch {
	case code == response.APIResponseCodeError, code == response.APIResponseCodeUpstream:
		logctx.FromGin(c, base).Errorw("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
	case errors.As(err, &verr):
		c.JSON(http.StatusOK, response.ErrorT[any](code, verr.Fields))
	case verification.ReasonOf(err) != "":
		c.JSON(http.StatusOK, response.ErrorT[any](code, rejection{Reason: verification.ReasonOf(err), Error: err.Error()}))
	default:
		c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}
