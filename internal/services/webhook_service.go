package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
)

const notificationMaxAttempt = 3

// ReconciliationService applies verified payment events to service requests and orders
type ReconciliationService struct {
	db     *gorm.DB
	cache  *RedisCache
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewReconciliationService(db *gorm.DB, cache *RedisCache, logger *zap.SugaredLogger) *ReconciliationService {
	return &ReconciliationService{db: db, cache: cache, logger: logger, now: time.Now}
}

// HandleEvent applies ev. A returned error means the store could not be updated and the gateway should retry.
// Unknown event types and unknown record ids are acknowledged without changes.
func (s *ReconciliationService) HandleEvent(ctx context.Context, ev *PaymentEvent) error {
	log := s.logger.With("event_id", ev.ID, "event_type", ev.GatewayType)

	record := s.recordEvent(ctx, ev, log)

	processed, err := s.cache.EventProcessed(ctx, ev.ID)
	if err != nil {
		log.Warnw("Failed to check processed-event marker", "error", err)
	}
	if processed {
		log.Infow("Event already processed, skipping")
		return nil
	}

	var invalidateBeats bool
	switch ev.Type {
	case PaymentEventCompleted:
		invalidateBeats, err = s.applyCompleted(ctx, ev, log)
	case PaymentEventRefunded:
		invalidateBeats, err = s.applyRefunded(ctx, ev, log)
	default:
		log.Debugw("Ignoring unhandled event type")
	}

	s.finishRecord(ctx, record, err, log)
	if err != nil {
		return err
	}

	if invalidateBeats {
		if err := s.cache.Delete(ctx, BeatCatalogCacheKey); err != nil {
			log.Warnw("Failed to invalidate beat catalog cache", "error", err)
		}
	}
	if err := s.cache.MarkEventProcessed(ctx, ev.ID); err != nil {
		log.Warnw("Failed to set processed-event marker", "error", err)
	}
	return nil
}

func (s *ReconciliationService) applyCompleted(ctx context.Context, ev *PaymentEvent, log *zap.SugaredLogger) (bool, error) {
	switch {
	case ev.ServiceRequestID != "":
		return false, s.markServiceRequestPaid(ctx, ev, log)
	case ev.OrderID != "":
		return s.markOrderPaid(ctx, ev.OrderID, ev.PaymentIntentID, log)
	default:
		log.Infow("Completed checkout carries no service request or order reference")
		return false, nil
	}
}

func (s *ReconciliationService) markServiceRequestPaid(ctx context.Context, ev *PaymentEvent, log *zap.SugaredLogger) error {
	id := ev.ServiceRequestID
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.ServiceRequest
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnw("Paid service request not found", "service_request_id", id)
				return nil
			}
			return fmt.Errorf("lookup service request %s: %w", id, err)
		}

		if !req.PaymentStatus.CanTransitionTo(models.PaymentStatusPaid) {
			log.Warnw("Ignoring payment for settled service request", "service_request_id", id, "status", req.PaymentStatus)
			return nil
		}
		firstPayment := req.PaymentStatus != models.PaymentStatusPaid

		updates := paidUpdates(ev.PaymentIntentID, firstPayment, s.now())
		if ev.AmountMinor > 0 {
			updates["amount_paid"] = decimal.New(ev.AmountMinor, -2)
		}
		if ev.ItemName != "" {
			updates["paid_item"] = ev.ItemName
		}
		if err := tx.Model(&req).Updates(updates).Error; err != nil {
			return fmt.Errorf("mark service request %s paid: %w", id, err)
		}

		if firstPayment {
			log.Infow("Service request paid", "service_request_id", id)
			return enqueueNotifications(tx, "service_request", id, s.now())
		}
		return nil
	})
}

// markOrderPaid reports whether a beat was sold exclusively and the catalog cache must be dropped
func (s *ReconciliationService) markOrderPaid(ctx context.Context, id, paymentIntentID string, log *zap.SugaredLogger) (bool, error) {
	var soldBeat bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnw("Paid order not found", "order_id", id)
				return nil
			}
			return fmt.Errorf("lookup order %s: %w", id, err)
		}

		if !order.PaymentStatus.CanTransitionTo(models.PaymentStatusPaid) {
			log.Warnw("Ignoring payment for settled order", "order_id", id, "status", order.PaymentStatus)
			return nil
		}
		firstPayment := order.PaymentStatus != models.PaymentStatusPaid

		if err := tx.Model(&order).Updates(paidUpdates(paymentIntentID, firstPayment, s.now())).Error; err != nil {
			return fmt.Errorf("mark order %s paid: %w", id, err)
		}

		if order.LicenseType == models.LicenseTypeExclusive {
			if err := tx.Model(&models.Beat{}).Where("id = ?", order.BeatID).Update("is_sold", true).Error; err != nil {
				return fmt.Errorf("mark beat %s sold: %w", order.BeatID, err)
			}
			soldBeat = true
		}

		if firstPayment {
			log.Infow("Order paid", "order_id", id, "license_type", order.LicenseType)
			return enqueueNotifications(tx, "order", id, s.now())
		}
		return nil
	})
	return soldBeat, err
}

func (s *ReconciliationService) applyRefunded(ctx context.Context, ev *PaymentEvent, log *zap.SugaredLogger) (bool, error) {
	requestID, orderID := ev.ServiceRequestID, ev.OrderID

	// Charges created before metadata was copied to payment intents carry no reference
	if requestID == "" && orderID == "" && ev.PaymentIntentID != "" {
		var err error
		requestID, orderID, err = s.findByPaymentIntent(ctx, ev.PaymentIntentID)
		if err != nil {
			return false, err
		}
	}

	switch {
	case requestID != "":
		return false, s.markServiceRequestRefunded(ctx, requestID, log)
	case orderID != "":
		return s.markOrderRefunded(ctx, orderID, log)
	default:
		log.Infow("Refunded charge matches no service request or order", "payment_intent_id", ev.PaymentIntentID)
		return false, nil
	}
}

func (s *ReconciliationService) findByPaymentIntent(ctx context.Context, paymentIntentID string) (string, string, error) {
	db := s.db.WithContext(ctx)

	var req models.ServiceRequest
	err := db.Select("id").Where("payment_intent_id = ?", paymentIntentID).Take(&req).Error
	if err == nil {
		return req.ID, "", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", fmt.Errorf("lookup service request by payment intent: %w", err)
	}

	var order models.Order
	err = db.Select("id").Where("payment_intent_id = ?", paymentIntentID).Take(&order).Error
	if err == nil {
		return "", order.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", fmt.Errorf("lookup order by payment intent: %w", err)
	}
	return "", "", nil
}

func (s *ReconciliationService) markServiceRequestRefunded(ctx context.Context, id string, log *zap.SugaredLogger) error {
	result := s.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("id = ? AND (payment_status IS NULL OR payment_status <> ?)", id, models.PaymentStatusRefunded).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusRefunded,
			"refunded_at":    s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("mark service request %s refunded: %w", id, result.Error)
	}
	log.Infow("Service request refunded", "service_request_id", id, "updated", result.RowsAffected)
	return nil
}

// markOrderRefunded puts an exclusively licensed beat back on sale
func (s *ReconciliationService) markOrderRefunded(ctx context.Context, id string, log *zap.SugaredLogger) (bool, error) {
	var relisted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnw("Refunded order not found", "order_id", id)
				return nil
			}
			return fmt.Errorf("lookup order %s: %w", id, err)
		}
		if order.PaymentStatus == models.PaymentStatusRefunded {
			return nil
		}

		if err := tx.Model(&order).Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusRefunded,
			"refunded_at":    s.now(),
		}).Error; err != nil {
			return fmt.Errorf("mark order %s refunded: %w", id, err)
		}

		if order.LicenseType == models.LicenseTypeExclusive && order.PaymentStatus == models.PaymentStatusPaid {
			if err := tx.Model(&models.Beat{}).Where("id = ?", order.BeatID).Update("is_sold", false).Error; err != nil {
				return fmt.Errorf("relist beat %s: %w", order.BeatID, err)
			}
			relisted = true
		}
		log.Infow("Order refunded", "order_id", id)
		return nil
	})
	return relisted, err
}

// recordEvent upserts the audit row for ev. Failures are logged and never block processing.
func (s *ReconciliationService) recordEvent(ctx context.Context, ev *PaymentEvent, log *zap.SugaredLogger) *models.PaymentEventRecord {
	if ev.ID == "" {
		return nil
	}

	record := &models.PaymentEventRecord{}
	err := s.db.WithContext(ctx).
		Where(models.PaymentEventRecord{PaymentGateway: models.PaymentGatewayStripe, ProviderEventID: ev.ID}).
		Assign(models.PaymentEventRecord{EventType: ev.GatewayType, Payload: datatypes.JSON(ev.Payload)}).
		FirstOrCreate(record).Error
	if err != nil {
		log.Warnw("Failed to record payment event", "error", err)
		return nil
	}
	return record
}

func (s *ReconciliationService) finishRecord(ctx context.Context, record *models.PaymentEventRecord, procErr error, log *zap.SugaredLogger) {
	if record == nil {
		return
	}

	updates := map[string]interface{}{"processing_error": ""}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = s.now()
	}
	if err := s.db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		log.Warnw("Failed to update payment event record", "error", err)
	}
}

func paidUpdates(paymentIntentID string, firstPayment bool, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"payment_status": models.PaymentStatusPaid,
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = paymentIntentID
	}
	if firstPayment {
		updates["paid_at"] = now
	}
	return updates
}

// enqueueNotifications schedules the customer receipt and the studio alert for a fresh payment
func enqueueNotifications(tx *gorm.DB, kind, id string, now time.Time) error {
	args := map[string]interface{}{"kind": kind, "id": id}
	tasks := []*models.ScheduledTask{
		models.NewOneTimeTask(models.TaskSendPaymentReceipt, args, now, notificationMaxAttempt),
		models.NewOneTimeTask(models.TaskNotifyStudio, args, now, notificationMaxAttempt),
	}
	if err := tx.Create(&tasks).Error; err != nil {
		return fmt.Errorf("enqueue notifications for %s %s: %w", kind, id, err)
	}
	return nil
}
