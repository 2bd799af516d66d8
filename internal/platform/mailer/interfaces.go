package mailer

import (
	"context"
	"fmt"
	"time"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Service delivers one message and returns the provider's message id when it has one.
type Service interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// PasswordResetMessage builds the email carrying a plaintext reset link.
func PasswordResetMessage(toEmail, toName, resetURL string, ttl time.Duration) Message {
	subject := fmt.Sprintf("Your password reset token (valid for %d min)", int(ttl.Minutes()))
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
		"If you didn't forget your password, please ignore this email!", resetURL)
	html := fmt.Sprintf(`<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
        <p><a href="%s">%s</a></p>
        <p>If you didn't forget your password, please ignore this email!</p>`, resetURL, resetURL)
	return Message{To: toEmail, ToName: toName, Subject: subject, Text: text, HTML: html}
}
