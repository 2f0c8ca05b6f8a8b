package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
)

const digestListLimit = 50

// NotifyStudioTaskDef alerts the studio over WhatsApp when a payment lands
type NotifyStudioTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *NotifyStudioTaskDef) TaskID() string {
	return models.TaskNotifyStudio
}

// HandleExecution sends the WhatsApp alert to the configured studio chat
func (t *NotifyStudioTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.StudioChatID == "" {
		return map[string]interface{}{"skipped": "studio chat not configured"}, nil
	}

	var args PaymentRecordArgs
	if err := parseArgs(task, &args); err != nil {
		return nil, err
	}

	summary, err := loadPaymentSummary(ctx, deps.DB, args, deps.Currency)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New payment: %s\n", summary.Item)
	if summary.Amount != "" {
		fmt.Fprintf(&b, "Amount: %s\n", summary.Amount)
	}
	customer := summary.CustomerEmail
	if summary.CustomerName != "" {
		customer = fmt.Sprintf("%s <%s>", summary.CustomerName, summary.CustomerEmail)
	}
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Reference: %s", summary.Reference)

	if err := deps.Messenger.SendMessage(ctx, deps.StudioChatID, b.String()); err != nil {
		return nil, err
	}

	return map[string]interface{}{"chat_id": deps.StudioChatID}, nil
}

// NotifyStudioTask is the singleton instance of NotifyStudioTaskDef
var NotifyStudioTask = &NotifyStudioTaskDef{}

// PendingRequestsDigestTaskDef emails the studio the service requests still waiting for payment
type PendingRequestsDigestTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *PendingRequestsDigestTaskDef) TaskID() string {
	return models.TaskPendingRequestsDigest
}

// HandleExecution sends the digest; nothing is sent when no request is pending
func (t *PendingRequestsDigestTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps.StudioEmail == "" {
		return map[string]interface{}{"skipped": "studio email not configured"}, nil
	}

	query := deps.DB.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("payment_status = ?", models.PaymentStatusPending).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending requests: %w", err)
	}
	if total == 0 {
		return map[string]interface{}{"pending": 0}, nil
	}

	var requests []models.ServiceRequest
	if err := query.Preload("Service").Order("created_at ASC").Limit(digestListLimit).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending requests: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d service request(s) are waiting for payment:\n\n", total)
	for _, req := range requests {
		service := "-"
		if req.Service != nil {
			service = req.Service.Name
		}
		fmt.Fprintf(&b, "- %s | %s <%s> | %s | since %s\n",
			req.ID, req.CustomerName, req.CustomerEmail, service, req.CreatedAt.UTC().Format("2006-01-02"))
	}
	if total > int64(len(requests)) {
		fmt.Fprintf(&b, "\n...and %d more.\n", total-int64(len(requests)))
	}

	subject := fmt.Sprintf("%d pending service request(s)", total)
	if err := deps.Mailer.SendEmail([]string{deps.StudioEmail}, subject, b.String()); err != nil {
		return nil, err
	}

	return map[string]interface{}{"pending": total}, nil
}

// PendingRequestsDigestTask is the singleton instance of PendingRequestsDigestTaskDef
var PendingRequestsDigestTask = &PendingRequestsDigestTaskDef{}

// EnsureDigestTask keeps exactly one active recurring digest task following rule.
// An empty rule leaves the table untouched.
func EnsureDigestTask(ctx context.Context, db *gorm.DB, rule string, now time.Time) (*models.ScheduledTask, error) {
	if rule == "" {
		return nil, nil
	}

	parsed, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid digest rule %q: %w", rule, err)
	}
	parsed.DTStart(now)
	first := parsed.After(now, true)
	if first.IsZero() {
		return nil, fmt.Errorf("digest rule %q has no upcoming occurrence", rule)
	}

	var existing models.ScheduledTask
	err = db.WithContext(ctx).
		Where("task_name = ? AND status = ?", models.TaskPendingRequestsDigest, models.ScheduledTaskStatusActive).
		First(&existing).Error
	if err == nil {
		if existing.RecurringInterval != nil && *existing.RecurringInterval == rule {
			return &existing, nil
		}
		updates := map[string]interface{}{"recurring_interval": rule, "due": first}
		if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update digest task: %w", err)
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up digest task: %w", err)
	}

	task, err := BuildScheduledTask(models.TaskPendingRequestsDigest, map[string]interface{}{}, first, &rule, models.ScheduledTaskTypeRecurring, 3)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create digest task: %w", err)
	}
	return task, nil
}
