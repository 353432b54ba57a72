// Package mail queues outgoing emails on RabbitMQ and delivers them over
// SMTP from a separate worker.
package mail

import (
	"fmt"
	"net/url"
)

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PasswordReset builds the email carrying a one-time reset link.
func PasswordReset(to, name, resetURL, token string) Email {
	link := resetURL + "?token=" + url.QueryEscape(token)
	return Email{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to set a new password:\n%s\n\n"+
			"If you did not ask for a password reset you can ignore this email.\n", name, link),
	}
}
