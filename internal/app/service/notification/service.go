package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/internal/models"
	"github.com/fatflowers/coachpay/internal/platform/mail"
	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logctx"
)

const sendTimeout = 30 * time.Second

// Service composes transactional emails and sends them in the background.
// Delivery failures are logged and never reach the caller.
type Service struct {
	sender   mail.Sender
	users    Directory
	tpl      *renderer
	from     string
	replyTo  string
	currency string
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
}

func NewService(cfg *config.Config, sender mail.Sender, users Directory, log *zap.SugaredLogger) (*Service, error) {
	tpl, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Service{
		sender:   sender,
		users:    users,
		tpl:      tpl,
		from:     cfg.Mail.From,
		replyTo:  cfg.Mail.ReplyTo,
		currency: cfg.Gateway.Currency,
		log:      log,
	}, nil
}

func (s *Service) PaymentConfirmed(ctx context.Context, sub *models.Subscription, payment *models.Payment) {
	if sub == nil || payment == nil {
		return
	}
	currency := payment.Currency
	if currency == "" {
		currency = s.currency
	}
	s.dispatch(ctx, sub.UserID, templatePaymentConfirmed, templateData{
		Service:         sub.ServiceID,
		SubscriptionID:  sub.ID,
		ChargeID:        payment.ChargeID,
		Amount:          payment.Amount.StringFixed(3),
		Currency:        currency,
		NextBillingDate: formatDate(sub.NextBillingDate),
	})
}

func (s *Service) RenewalReminder(ctx context.Context, sub *models.Subscription) {
	if sub == nil {
		return
	}
	s.dispatch(ctx, sub.UserID, templateRenewalReminder, templateData{
		Service:         sub.ServiceID,
		SubscriptionID:  sub.ID,
		Amount:          sub.BillingAmount.StringFixed(3),
		Currency:        s.currency,
		NextBillingDate: formatDate(sub.NextBillingDate),
	})
}

// CoachAssigned tells the assigned coach about a new client.
func (s *Service) CoachAssigned(ctx context.Context, sub *models.Subscription) {
	if sub == nil || sub.CoachID == nil {
		return
	}
	s.dispatch(ctx, *sub.CoachID, templateCoachAssigned, templateData{
		Service:        sub.ServiceID,
		SubscriptionID: sub.ID,
	})
}

func (s *Service) dispatch(ctx context.Context, userID, name string, data templateData) {
	ctx = context.WithoutCancel(ctx)
	log := logctx.FromCtx(ctx, s.log).With("template", name, "user_id", userID, "subscription_id", data.SubscriptionID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		to, err := s.users.Recipient(ctx, userID)
		if err != nil {
			log.Warnw("skip email, no recipient", "err", err)
			return
		}
		data.Name = to.Name
		if data.Name == "" {
			data.Name = "there"
		}
		subject, body, err := s.tpl.render(name, data)
		if err != nil {
			log.Errorw("render email failed", "err", err)
			return
		}
		res, err := s.sender.Send(ctx, &mail.Message{
			From:    s.from,
			To:      []string{to.Email},
			Subject: subject,
			HTML:    body,
			ReplyTo: s.replyTo,
		})
		if err != nil {
			log.Errorw("send email failed", "err", err)
			return
		}
		if !res.Success {
			log.Warnw("email rejected by provider", "error", res.Error)
			return
		}
		log.Infow("email sent", "id", res.ID)
	}()
}

// Wait blocks until in-flight emails finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2 January 2006")
}

func register(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{OnStop: s.Wait})
}

var Module = fx.Options(
	fx.Provide(NewDirectory),
	fx.Provide(NewService),
	fx.Invoke(register),
)
