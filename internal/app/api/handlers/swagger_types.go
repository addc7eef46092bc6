package handlers

import (
	"github.com/fatflowers/coachpay/internal/app/service/payment"
	"github.com/fatflowers/coachpay/internal/app/service/payout"
	"github.com/fatflowers/coachpay/internal/app/service/statistics"
	"github.com/fatflowers/coachpay/internal/app/service/subscription"
	"github.com/fatflowers/coachpay/internal/app/service/verification"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespVerify struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    verification.Result      `json:"data"`
}

type RespOnboard struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    subscription.OnboardResult `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

type RespPayoutRun struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payout.Result            `json:"data"`
}

type RespPayoutList struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    []models.MonthlyCoachPayment `json:"data"`
}

type RespPaymentList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payment.ScanResponse     `json:"data"`
}

type RespStatistics struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}

// SwaggerWebhookCharge documents the fields read from a gateway charge event.
type SwaggerWebhookCharge struct {
	ID       string            `json:"id" example:"chg_TS02A5720231433Qs1w0809820"`
	Status   string            `json:"status" example:"CAPTURED"`
	Metadata map[string]string `json:"metadata"`
}
