package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	m.opts = append(m.opts, opts)
	return &asynq.TaskInfo{ID: "id", Type: task.Type()}, nil
}

func TestClient_EnqueueEmail(t *testing.T) {
	tests := []struct {
		name          string
		payload       EmailPayload
		enqueueErr    error
		expectedError bool
	}{
		{name: "success", payload: EmailPayload{To: "ada@example.com", Subject: "Hi", Body: "<p>Hi</p>"}},
		{name: "missing recipient", payload: EmailPayload{Subject: "Hi"}, expectedError: true},
		{name: "redis down", payload: EmailPayload{To: "ada@example.com"}, enqueueErr: errors.New("dial tcp: refused"), expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockEnqueuer{err: tt.enqueueErr}
			err := NewClient(m).EnqueueEmail(context.Background(), tt.payload)

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, m.tasks, 1)
			assert.Equal(t, TypeEmailSend, m.tasks[0].Type())

			parsed, err := ParseEmailPayload(m.tasks[0])
			require.NoError(t, err)
			assert.Equal(t, tt.payload, parsed)
		})
	}
}

func TestClient_EnqueuePaymentVerification(t *testing.T) {
	m := &mockEnqueuer{}

	err := NewClient(m).EnqueuePaymentVerification(context.Background(), "pay-1", 5*time.Second)

	require.NoError(t, err)
	require.Len(t, m.tasks, 1)
	assert.Equal(t, TypePaymentVerify, m.tasks[0].Type())
	assert.Len(t, m.opts[0], 1)

	p, err := ParsePaymentVerifyPayload(m.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.PaymentID)
}

func TestParsePayloads_Invalid(t *testing.T) {
	_, err := ParseEmailPayload(asynq.NewTask(TypeEmailSend, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	_, err = ParsePaymentVerifyPayload(asynq.NewTask(TypePaymentVerify, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEmails(t *testing.T) {
	welcome := WelcomeEmail("ada@example.com", "<Ada>", "student")
	assert.Equal(t, "ada@example.com", welcome.To)
	assert.Contains(t, welcome.Body, "&lt;Ada&gt;")
	assert.NotContains(t, welcome.Body, "<Ada>")

	enrolled := EnrollmentEmail("ada@example.com", "Ada", "Go & Rust")
	assert.Contains(t, enrolled.Body, "Go &amp; Rust")

	receipt := ReceiptEmail("ada@example.com", "Monthly", 999, "USD", "pay-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	assert.Contains(t, receipt.Body, "9.99 USD")
	assert.Contains(t, receipt.Body, "2026-03-01 12:00")
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents    int64
		expected string
	}{
		{cents: 0, expected: "0.00"},
		{cents: 5, expected: "0.05"},
		{cents: 999, expected: "9.99"},
		{cents: 100000, expected: "1000.00"},
		{cents: -250, expected: "-2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAmount(tt.cents))
		})
	}
}
