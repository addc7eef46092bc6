package mail

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/pkg/config"
)

type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	ReplyTo string
}

// SendResult mirrors the delivery provider's reply.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}

func (m *Message) validate() error {
	if m == nil {
		return fmt.Errorf("mail: nil message")
	}
	if len(m.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	if m.Subject == "" {
		return fmt.Errorf("mail: empty subject")
	}
	return nil
}

// NewSender selects the transport configured under mail.transport.
func NewSender(cfg *config.Config, log *zap.SugaredLogger) (Sender, error) {
	switch cfg.Mail.Transport {
	case "smtp":
		log.Infow("mail transport: smtp", "host", cfg.Mail.SMTPHost, "port", cfg.Mail.SMTPPort)
		return NewSMTPSender(SMTPOptions{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			User:     cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPassword,
		}), nil
	case "http", "":
		log.Infow("mail transport: http", "url", cfg.Mail.APIURL)
		return NewHTTPSender(HTTPOptions{
			URL:     cfg.Mail.APIURL,
			APIKey:  cfg.Mail.APIKey,
			Timeout: cfg.Mail.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("mail: unsupported transport %q", cfg.Mail.Transport)
	}
}

var Module = fx.Options(
	fx.Provide(NewSender),
)
