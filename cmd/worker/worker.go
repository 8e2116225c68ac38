package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/services"
	"github.com/learnsy/backend/internal/tasks"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// PaymentVerifier settles pending payments
type PaymentVerifier interface {
	// VerifyPayment settles the payment with the given ID
	//
	// Payments that are no longer pending are returned unchanged.
	//
	// If the payment does not exist, an error wrapping services.ErrNotFound is returned.
	VerifyPayment(ctx context.Context, id string) (*models.Payment, error)
}

// Mailer delivers emails
type Mailer interface {
	// Send delivers an HTML email to a single recipient
	Send(to, subject, body string) error
}

// Worker processes background tasks
type Worker struct {
	logger   *zap.Logger
	payments PaymentVerifier
	mailer   Mailer
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, payments PaymentVerifier, mailer Mailer) *Worker {
	return &Worker{
		logger:   logger,
		payments: payments,
		mailer:   mailer,
	}
}

// Register adds the task handlers to mux
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeEmailSend, w.HandleEmailSend)
	mux.HandleFunc(tasks.TypePaymentVerify, w.HandlePaymentVerify)
}

// HandleEmailSend handles email delivery
func (w *Worker) HandleEmailSend(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseEmailPayload(t)
	if err != nil {
		return err
	}
	if p.To == "" {
		return fmt.Errorf("email recipient is required: %w", asynq.SkipRetry)
	}

	if err := w.mailer.Send(p.To, p.Subject, p.Body); err != nil {
		w.logger.Error("failed to send email", zap.String("to", p.To), zap.Error(err))
		return err
	}

	w.logger.Info("email sent", zap.String("to", p.To), zap.String("subject", p.Subject))
	return nil
}

// HandlePaymentVerify handles settlement of a simulated payment
func (w *Worker) HandlePaymentVerify(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParsePaymentVerifyPayload(t)
	if err != nil {
		return err
	}

	payment, err := w.payments.VerifyPayment(ctx, p.PaymentID)
	if err != nil {
		// Payment was removed before processing, nothing to settle
		if errors.Is(err, services.ErrNotFound) {
			w.logger.Warn("payment to verify not found", zap.String("payment_id", p.PaymentID))
			return nil
		}
		return fmt.Errorf("failed to verify payment %s: %w", p.PaymentID, err)
	}

	w.logger.Info("payment verified",
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)),
		zap.Int("student_id", payment.StudentID),
	)
	return nil
}

// smtpMailer sends emails using gopkg.in/mail.v2
type smtpMailer struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPMailer creates a Mailer that dials the SMTP server for each message
func NewSMTPMailer(host string, port int, username, password, from string) *smtpMailer {
	return &smtpMailer{
		dialer: mail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send sends an email
func (m *smtpMailer) Send(to, subject, body string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
