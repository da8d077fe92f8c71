package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/carriers"
	"shipment-orchestrator/internal/models"
	"shipment-orchestrator/internal/repository"
	"shipment-orchestrator/internal/telemetry"
)

// Webhook outcomes, used as the metric label
const (
	WebhookApplied   = "applied"
	WebhookRejected  = "rejected"
	WebhookInvalid   = "invalid"
	WebhookDuplicate = "duplicate"
	WebhookUnmatched = "unmatched"
	WebhookFailed    = "error"
)

// WebhookDeduper skips deliveries that were already processed
type WebhookDeduper interface {
	FirstSeen(ctx context.Context, fingerprint string) (bool, error)
	Forget(ctx context.Context, fingerprint string) error
}

// WebhookService authenticates tracking pushes and hands them to the
// reconciler. It never returns an error: every delivery is acknowledged and
// the outcome is reported in the body, so the aggregator does not retry.
type WebhookService struct {
	reconciler    *StatusReconciler
	settings      repository.SettingsRepository
	defaultSecret string
	deduper       WebhookDeduper
	metrics       *telemetry.Metrics
	logger        *logrus.Entry
}

// NewWebhookService creates a new webhook service. defaultSecret applies
// when the settings row has no webhook secret.
func NewWebhookService(
	reconciler *StatusReconciler,
	settings repository.SettingsRepository,
	defaultSecret string,
	deduper WebhookDeduper,
	metrics *telemetry.Metrics,
	logger *logrus.Entry,
) *WebhookService {
	return &WebhookService{
		reconciler:    reconciler,
		settings:      settings,
		defaultSecret: defaultSecret,
		deduper:       deduper,
		metrics:       metrics,
		logger:        logger.WithField("component", "webhook"),
	}
}

// Handle processes one delivery
func (s *WebhookService) Handle(ctx context.Context, providedSecret string, payload *models.TrackingWebhookPayload) models.WebhookAck {
	ok, err := s.authenticate(ctx, providedSecret)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load webhook secret")
		return s.ack(WebhookFailed, models.WebhookAck{Success: false, Error: "processing failed"})
	}
	if !ok {
		s.logger.Warn("Rejected tracking webhook with invalid secret")
		return s.ack(WebhookRejected, models.WebhookAck{Success: false, Error: "unauthorized"})
	}

	if payload == nil || payload.AWBCode() == "" {
		s.logger.Warn("Tracking webhook without AWB")
		return s.ack(WebhookInvalid, models.WebhookAck{Success: false, Error: "awb is required"})
	}

	logger := s.logger.WithFields(logrus.Fields{
		"awb_code":    payload.AWBCode(),
		"status_code": payload.StatusCode(),
		"status":      payload.StatusLabel(),
	})

	fingerprint := webhookFingerprint(payload)
	if s.deduper != nil {
		first, err := s.deduper.FirstSeen(ctx, fingerprint)
		if err != nil {
			logger.WithError(err).Warn("Webhook dedupe unavailable")
		} else if !first {
			logger.Debug("Duplicate tracking webhook skipped")
			return s.ack(WebhookDuplicate, models.WebhookAck{Success: true, Message: "duplicate delivery"})
		}
	}

	result, err := s.reconciler.ApplyByAWB(ctx, StatusUpdate{
		AWBCode:     payload.AWBCode(),
		StatusCode:  payload.StatusCode(),
		StatusLabel: payload.StatusLabel(),
		TrackingURL: payload.TrackURL,
		ETD:         carriers.ParseTime(payload.ETD),
		CourierName: payload.CourierName,
		Source:      SourceWebhook,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Info("Tracking webhook for unknown AWB acknowledged")
			return s.ack(WebhookUnmatched, models.WebhookAck{Success: true, Message: "order not found"})
		}
		if s.deduper != nil {
			if forgetErr := s.deduper.Forget(ctx, fingerprint); forgetErr != nil {
				logger.WithError(forgetErr).Warn("Failed to clear webhook fingerprint")
			}
		}
		logger.WithError(err).Error("Failed to apply tracking webhook")
		return s.ack(WebhookFailed, models.WebhookAck{Success: false, Error: "processing failed"})
	}

	logger.WithFields(logrus.Fields{
		"order_id":       result.OrderID,
		"courier_status": result.CourierStatus,
		"order_status":   result.OrderStatus,
		"status_changed": result.StatusChanged,
	}).Info("Tracking webhook applied")
	return s.ack(WebhookApplied, models.WebhookAck{Success: true, Message: "status updated"})
}

func (s *WebhookService) ack(result string, ack models.WebhookAck) models.WebhookAck {
	s.metrics.RecordWebhook(result)
	return ack
}

func (s *WebhookService) authenticate(ctx context.Context, provided string) (bool, error) {
	expected := s.defaultSecret
	if s.settings != nil {
		settings, err := s.settings.Get(ctx)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return false, err
		}
		if settings != nil && settings.WebhookSecret != "" {
			expected = settings.WebhookSecret
		}
	}
	if expected == "" {
		return true, nil
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1, nil
}

func webhookFingerprint(p *models.TrackingWebhookPayload) string {
	return strings.Join([]string{
		p.AWBCode(),
		strconv.Itoa(p.StatusCode()),
		NormalizeStatusLabel(p.StatusLabel()),
		p.CurrentTimestamp,
		p.ETD,
		p.TrackURL,
	}, "|")
}
