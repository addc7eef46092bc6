package mail

import (
	"context"

	"gopkg.in/gomail.v2"
)

type SMTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	send func(m ...*gomail.Message) error
}

func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	d := gomail.NewDialer(opts.Host, opts.Port, opts.User, opts.Password)
	return &SMTPSender{send: d.DialAndSend}
}

func buildMessage(msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetBody("text/html", msg.HTML)
	return m
}

// Send ignores ctx; gomail has no context-aware dial.
func (s *SMTPSender) Send(_ context.Context, msg *Message) (*SendResult, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if err := s.send(buildMessage(msg)); err != nil {
		return &SendResult{Success: false, Error: err.Error()}, nil
	}
	return &SendResult{Success: true}, nil
}
