package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/app/service/verification"
	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/response"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 1 << 20

type Verifier interface {
	Verify(ctx context.Context, req verification.Request) (*verification.Result, error)
}

type VerifyPaymentRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
	ChargeID       string `json:"charge_id" binding:"required"`
}

// webhookCharge is the part of the gateway's charge event the webhook reads.
type webhookCharge struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// @Summary      Verify Payment
// @Description  Verifies a gateway charge against the subscription and activates it once.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.VerifyPaymentRequest true "Charge to verify"
// @Success      200  {object}  handlers.RespVerify
// @Router       /api/v2/payment/verify [post]
func ApiVerifyPayment(v Verifier, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := v.Verify(c.Request.Context(), verification.Request{
			SubscriptionID: req.SubscriptionID,
			ChargeID:       req.ChargeID,
			Source:         models.VerificationLogSourceClient,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Gateway Webhook
// @Description  Receives charge events from the payment gateway and runs them through verification. The body is signed with HMAC-SHA256 in the X-Gateway-Signature header.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Gateway-Signature header string false "hex HMAC-SHA256 of the body"
// @Param        payload body handlers.SwaggerWebhookCharge true "Gateway charge event"
// @Success      200  {object}  handlers.RespVerify
// @Router       /api/v2/payment/webhook/gateway [post]
func ApiGatewayWebhook(v Verifier, secret string, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := logctx.FromGin(c, log)
		body, err := readBody(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		if secret != "" && !validSignature(secret, body, c.GetHeader(SignatureHeader)) {
			l.Warnw("webhook_gateway_bad_signature")
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid signature"))
			return
		}

		var charge webhookCharge
		if err := json.Unmarshal(body, &charge); err != nil {
			badRequest(c, err)
			return
		}
		subID := charge.Metadata["subscription_id"]
		if charge.ID == "" || subID == "" {
			badRequest(c, errors.New("charge id and metadata.subscription_id are required"))
			return
		}
		l.Infow("webhook_gateway_received", "charge_id", charge.ID, "subscription_id", subID)

		res, err := v.Verify(c.Request.Context(), verification.Request{
			SubscriptionID: subID,
			ChargeID:       charge.ID,
			Source:         models.VerificationLogSourceWebhook,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		l.Infow("webhook_gateway_handled", "outcome", res.Outcome)
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	return c.GetRawData()
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	return hex.EncodeToString(mac(secret, body))
}

func mac(secret string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return h.Sum(nil)
}

func validSignature(secret string, body []byte, got string) bool {
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secret, body), sig)
}

func RegisterPaymentV2Routes(r gin.IRouter, v Verifier, webhookSecret string, log *zap.SugaredLogger) {
	r.POST("/verify", ApiVerifyPayment(v, log))
	r.POST("/webhook/gateway", ApiGatewayWebhook(v, webhookSecret, log))
}
