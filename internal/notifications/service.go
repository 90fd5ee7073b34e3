package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/richxcame/civic-reports/pkg/resilience"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedContact = errors.New("contact is neither an email address nor a phone number")
	ErrChannelDisabled    = errors.New("notification channel not configured")
	ErrChannelUnavailable = errors.New("notification channel unavailable")
)

// EmailSender delivers email and returns the provider's message id.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) (string, error)
}

// SMSSender delivers text messages and returns the provider's message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// Service sends report confirmations to submitters.
type Service struct {
	email        EmailSender
	sms          SMSSender
	emailBreaker *resilience.CircuitBreaker
	smsBreaker   *resilience.CircuitBreaker
}

// NewService creates a notification service. Either sender may be nil.
func NewService(email EmailSender, sms SMSSender) *Service {
	return &Service{email: email, sms: sms}
}

// SetCircuitBreakers wires circuit breakers for downstream providers.
func (s *Service) SetCircuitBreakers(emailBreaker, smsBreaker *resilience.CircuitBreaker) {
	s.emailBreaker = emailBreaker
	s.smsBreaker = smsBreaker
}

// Send confirms receipt of a report to contact, by email or SMS depending on
// the contact's form, and returns the delivery id.
func (s *Service) Send(ctx context.Context, contact string, reportID uuid.UUID, status string) (string, error) {
	contact = strings.TrimSpace(contact)

	var (
		channel string
		send    func(ctx context.Context) (string, error)
		breaker *resilience.CircuitBreaker
	)

	switch {
	case strings.Contains(contact, "@"):
		if s.email == nil {
			return "", fmt.Errorf("email: %w", ErrChannelDisabled)
		}
		channel, breaker = "email", s.emailBreaker
		subject, html := confirmationEmail(reportID, status)
		send = func(ctx context.Context) (string, error) {
			return s.email.SendEmail(ctx, contact, subject, html)
		}
	case strings.HasPrefix(contact, "+"):
		if s.sms == nil {
			return "", fmt.Errorf("sms: %w", ErrChannelDisabled)
		}
		channel, breaker = "sms", s.smsBreaker
		body := confirmationSMS(reportID, status)
		send = func(ctx context.Context) (string, error) {
			return s.sms.SendSMS(ctx, contact, body)
		}
	default:
		return "", ErrUnsupportedContact
	}

	deliveryID, err := executeWithBreaker(ctx, breaker, send)
	if err != nil {
		return "", fmt.Errorf("%s: %w", channel, err)
	}

	logger.WithContext(ctx).Info("Notification sent",
		zap.String("channel", channel),
		zap.String("report_id", reportID.String()),
		zap.String("delivery_id", deliveryID))
	return deliveryID, nil
}

func executeWithBreaker(ctx context.Context, breaker *resilience.CircuitBreaker, send func(ctx context.Context) (string, error)) (string, error) {
	if breaker == nil {
		return send(ctx)
	}

	result, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return send(ctx)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", ErrChannelUnavailable
	}
	if err != nil {
		return "", err
	}

	id, _ := result.(string)
	return id, nil
}
