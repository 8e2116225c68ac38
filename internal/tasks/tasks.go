// Package tasks defines the background tasks shared by the api, worker and scheduler
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeEmailSend     = "email:send"
	TypePaymentVerify = "payment:verify"
)

// Queues and their worker weights
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Queues maps queue names to priorities for asynq.Config
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

// Retry limits
const (
	emailMaxRetry   = 5
	paymentMaxRetry = 3
)

// EmailPayload is an outgoing email
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PaymentVerifyPayload references the payment to settle
type PaymentVerifyPayload struct {
	PaymentID string `json:"paymentId"`
}

// NewEmailTask creates an email:send task
func NewEmailTask(p EmailPayload) (*asynq.Task, error) {
	if p.To == "" {
		return nil, fmt.Errorf("email recipient is required")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}
	return asynq.NewTask(TypeEmailSend, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(emailMaxRetry)), nil
}

// ParseEmailPayload decodes the payload of an email:send task
func ParseEmailPayload(t *asynq.Task) (EmailPayload, error) {
	var p EmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal email payload: %w: %w", err, asynq.SkipRetry)
	}
	return p, nil
}

// NewPaymentVerifyTask creates a payment:verify task. The payment ID doubles as the task ID so a payment is queued once.
func NewPaymentVerifyTask(paymentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PaymentVerifyPayload{PaymentID: paymentID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return asynq.NewTask(TypePaymentVerify, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(paymentMaxRetry),
		asynq.TaskID("payment:"+paymentID),
	), nil
}

// ParsePaymentVerifyPayload decodes the payload of a payment:verify task
func ParsePaymentVerifyPayload(t *asynq.Task) (PaymentVerifyPayload, error) {
	var p PaymentVerifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payment payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.PaymentID == "" {
		return p, fmt.Errorf("payment id is required: %w", asynq.SkipRetry)
	}
	return p, nil
}

// enqueuer is the part of *asynq.Client the Client uses
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues background tasks
type Client struct {
	client enqueuer
}

// NewClient creates a Client. Pass an *asynq.Client.
func NewClient(client enqueuer) *Client {
	return &Client{client: client}
}

// EnqueueEmail queues an email for delivery by the worker
func (c *Client) EnqueueEmail(ctx context.Context, p EmailPayload) error {
	task, err := NewEmailTask(p)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

// EnqueuePaymentVerification queues verification of a payment after delay
func (c *Client) EnqueuePaymentVerification(ctx context.Context, paymentID string, delay time.Duration) error {
	task, err := NewPaymentVerifyTask(paymentID)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay)); err != nil {
		return fmt.Errorf("failed to enqueue payment verification: %w", err)
	}
	return nil
}
