package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"studio_app_echo/internal/models"
)

const (
	kindServiceRequest = "service_request"
	kindOrder          = "order"
)

// PaymentRecordArgs points a task at a paid service request or order
type PaymentRecordArgs struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// paymentSummary is the part of a paid record that notifications print
type paymentSummary struct {
	Reference     string
	CustomerName  string
	CustomerEmail string
	Item          string
	Amount        string
	Status        models.PaymentStatus
	PaidAt        *time.Time
}

// loadPaymentSummary reads the record named by args. A missing record is an error so the attempt is retried.
func loadPaymentSummary(ctx context.Context, db *gorm.DB, args PaymentRecordArgs, currency string) (*paymentSummary, error) {
	if args.ID == "" {
		return nil, fmt.Errorf("id argument is missing")
	}

	switch args.Kind {
	case kindServiceRequest:
		var req models.ServiceRequest
		if err := db.WithContext(ctx).Preload("Service").First(&req, "id = ?", args.ID).Error; err != nil {
			return nil, lookupError("service request", args.ID, err)
		}
		s := &paymentSummary{
			Reference:     req.ID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			Item:          "Studio service",
			Status:        req.PaymentStatus,
			PaidAt:        req.PaidAt,
		}
		if req.Service != nil {
			s.Item = req.Service.Name
			s.Amount = req.Service.Price.StringFixed(2) + " " + currencyCode(currency)
		}
		if req.PaidItem != "" {
			s.Item = req.PaidItem
		}
		if req.AmountPaid != nil {
			s.Amount = req.AmountPaid.StringFixed(2) + " " + currencyCode(currency)
		}
		return s, nil

	case kindOrder:
		var order models.Order
		if err := db.WithContext(ctx).Preload("Beat").First(&order, "id = ?", args.ID).Error; err != nil {
			return nil, lookupError("order", args.ID, err)
		}
		item := fmt.Sprintf("Beat license (%s)", order.LicenseType)
		if order.Beat != nil {
			item = fmt.Sprintf("%s (%s license)", order.Beat.Title, order.LicenseType)
		}
		return &paymentSummary{
			Reference:     order.ID,
			CustomerEmail: order.CustomerEmail,
			Item:          item,
			Amount:        order.Amount.StringFixed(2) + " " + currencyCode(currency),
			Status:        order.PaymentStatus,
			PaidAt:        order.PaidAt,
		}, nil
	}

	return nil, fmt.Errorf("unknown record kind %q", args.Kind)
}

func lookupError(what, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s not found", what, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", what, id, err)
}

// SendPaymentReceiptTaskDef emails the customer once their payment has been reconciled
type SendPaymentReceiptTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendPaymentReceiptTaskDef) TaskID() string {
	return models.TaskSendPaymentReceipt
}

// HandleExecution sends the receipt. Records refunded before the task ran are skipped.
func (t *SendPaymentReceiptTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	var args PaymentRecordArgs
	if err := parseArgs(task, &args); err != nil {
		return nil, err
	}

	summary, err := loadPaymentSummary(ctx, deps.DB, args, deps.Currency)
	if err != nil {
		return nil, err
	}

	if summary.Status != models.PaymentStatusPaid {
		return map[string]interface{}{"skipped": "record is " + string(summary.Status)}, nil
	}
	if summary.CustomerEmail == "" {
		return map[string]interface{}{"skipped": "no customer email"}, nil
	}

	subject := "Payment received: " + summary.Item
	if err := deps.Mailer.SendEmail([]string{summary.CustomerEmail}, subject, receiptBody(summary)); err != nil {
		return nil, err
	}

	deps.Logger.Infow("Payment receipt sent", "kind", args.Kind, "id", args.ID)
	return map[string]interface{}{"recipient": summary.CustomerEmail}, nil
}

func receiptBody(s *paymentSummary) string {
	var b strings.Builder
	if s.CustomerName != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", s.CustomerName)
	} else {
		b.WriteString("Hi,\n\n")
	}
	b.WriteString("Thanks for your payment. Here are the details:\n\n")
	fmt.Fprintf(&b, "Item: %s\n", s.Item)
	if s.Amount != "" {
		fmt.Fprintf(&b, "Amount: %s\n", s.Amount)
	}
	fmt.Fprintf(&b, "Reference: %s\n", s.Reference)
	if s.PaidAt != nil {
		fmt.Fprintf(&b, "Paid at: %s\n", s.PaidAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString("\nWe will be in touch shortly.\n")
	return b.String()
}

// SendPaymentReceiptTask is the singleton instance of SendPaymentReceiptTaskDef
var SendPaymentReceiptTask = &SendPaymentReceiptTaskDef{}
