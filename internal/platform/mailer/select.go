package mailer

import (
	"github.com/diagnosis/natours/pkg/config"
)

// FromConfig picks the delivery backend: dev printer, MailerSend API, then plain SMTP.
func FromConfig(cfg config.EmailConfig) Service {
	switch {
	case cfg.DevMode:
		return NewDevMailer(nil)
	case cfg.MailerSendKey != "":
		return NewMailerSendMailer(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
