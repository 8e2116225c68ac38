package tasks

import (
	"fmt"
	"html"
	"time"
)

// WelcomeEmail is sent after signup
func WelcomeEmail(to, name, role string) EmailPayload {
	return EmailPayload{
		To:      to,
		Subject: "Welcome to Learnsy",
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>your %s account is ready. Sign in to get started.</p><p>The Learnsy team</p>",
			html.EscapeString(name), html.EscapeString(role),
		),
	}
}

// EnrollmentEmail confirms an enrollment
func EnrollmentEmail(to, name, courseTitle string) EmailPayload {
	return EmailPayload{
		To:      to,
		Subject: "You are enrolled in " + courseTitle,
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>you are now enrolled in <strong>%s</strong>. Happy learning!</p>",
			html.EscapeString(name), html.EscapeString(courseTitle),
		),
	}
}

// ReceiptEmail confirms a successful payment
func ReceiptEmail(to, planName string, amountCents int64, currency, paymentID string, expiresAt time.Time) EmailPayload {
	return EmailPayload{
		To:      to,
		Subject: "Your Learnsy receipt",
		Body: fmt.Sprintf(
			"<p>Thank you for subscribing to <strong>%s</strong>.</p>"+
				"<p>Amount: %s %s<br>Reference: %s<br>Premium access until %s (UTC).</p>",
			html.EscapeString(planName), FormatAmount(amountCents), html.EscapeString(currency),
			html.EscapeString(paymentID), expiresAt.UTC().Format("2006-01-02 15:04"),
		),
	}
}

// FormatAmount renders cents as a decimal amount, e.g. 999 -> "9.99"
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
