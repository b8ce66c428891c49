package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/security"
)

// Loan lifecycle events delivered to the configured webhook.
const (
	EventLoanRequested = "loan.requested"
	EventLoanApproved  = "loan.approved"
	EventLoanRepayment = "loan.repayment"
	EventLoanRepaid    = "loan.repaid"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// Event is the webhook body.
type Event struct {
	Event     string      `json:"event"`
	Data      domain.Loan `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewLoanEvent encodes a loan event.
func NewLoanEvent(event string, loan domain.Loan, at time.Time) ([]byte, error) {
	return json.Marshal(Event{Event: event, Data: loan, Timestamp: at.UTC()})
}

// Sender posts signed JSON payloads to webhook endpoints. Deliveries go
// through a circuit breaker so a dead receiver is not hammered by the
// worker.
type Sender struct {
	client  *http.Client
	secret  string
	breaker *gobreaker.CircuitBreaker
}

// BreakerFailures is how many consecutive failures open the breaker.
const BreakerFailures = 5

// NewSender returns a Sender with a 5 second timeout. Don't let slow
// receivers block the worker.
func NewSender(secret string, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{
		client: &http.Client{Timeout: 5 * time.Second},
		secret: secret,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("webhook circuit breaker changed state",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// SendWebhook posts body to url and expects a 2xx answer. While the
// breaker is open it fails fast with gobreaker.ErrOpenState.
func (s *Sender) SendWebhook(ctx context.Context, url string, body []byte) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, url, body)
	})
	return err
}

func (s *Sender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Microloan-Webhook/1.0")
	req.Header.Set(SignatureHeader, security.Sign(s.secret, body))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return fmt.Errorf("webhook receiver returned error: %d", resp.StatusCode)
}
