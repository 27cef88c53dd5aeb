// Package email sends operational notifications to the tenant's team over
// the tenant's own SMTP server.
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"orcazap/internal/tenant"
	"orcazap/platform/config"
	"orcazap/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gomail "github.com/wneessen/go-mail"
)

// OwnerDirectory resolves the notification recipient for a tenant.
type OwnerDirectory interface {
	OwnerEmail(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Notifier emails the tenant owner when a quote is held for review. All
// delivery is best-effort: callers log failures and move on.
type Notifier struct {
	owners    OwnerDirectory
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	enabled   bool
	log       *logger.Logger
}

// NewNotifier creates the approval notifier.
func NewNotifier(owners OwnerDirectory, cfg config.EmailConfig, log *logger.Logger) *Notifier {
	return &Notifier{
		owners:    owners,
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		enabled:   cfg.GetEmailEnabled(),
		log:       log,
	}
}

// ApprovalPending notifies the tenant owner about a held quote.
func (n *Notifier) ApprovalPending(ctx context.Context, tenantID, quoteID uuid.UUID, reason string, total decimal.Decimal) error {
	if !n.enabled {
		return nil
	}

	toEmail, err := n.owners.OwnerEmail(ctx, tenantID)
	if errors.Is(err, tenant.ErrOwnerNotFound) {
		n.log.WithTenantID(tenantID.String()).Warn("no owner to notify about pending approval")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve owner email: %w", err)
	}

	formattedTotal := formatCurrencyBRL(total)
	content, err := renderEmailTemplate("approval_pending.html", approvalPendingEmailData{
		baseEmailData: baseEmailData{
			Title:   "Orçamento aguardando aprovação",
			Heading: "Orçamento aguardando aprovação",
		},
		TotalFormatted: formattedTotal,
		Reason:         reason,
		QuoteID:        quoteID.String(),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf(subjectApprovalPendingFmt, formattedTotal)
	return n.send(ctx, toEmail, subject, content)
}

func (n *Notifier) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(n.fromName, n.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(n.host,
		gomail.WithPort(n.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.username),
		gomail.WithPassword(n.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
