package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"orcazap/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository persists approvals and audit entries. It runs over a pool or a
// transaction.
type Repository struct {
	q db.Querier
}

// NewRepository creates an approval repository over the given querier.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Create inserts a pending approval for a quote.
func (r *Repository) Create(ctx context.Context, tenantID, quoteID uuid.UUID, reason string) (*Approval, error) {
	const query = `
		INSERT INTO approvals (tenant_id, quote_id, status, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	a := &Approval{
		TenantID: tenantID,
		QuoteID:  quoteID,
		Status:   StatusPending,
		Reason:   reason,
	}
	err := r.q.QueryRow(ctx, query, tenantID, quoteID, StatusPending, reason).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Claim resolves a pending approval. The status predicate makes the first
// reviewer win; a second reviewer gets ErrAlreadyResolved.
func (r *Repository) Claim(ctx context.Context, tenantID, approvalID, actorID uuid.UUID, status Status, reason string) (*Approval, error) {
	const query = `
		UPDATE approvals
		SET status = $4,
		    reason = COALESCE(NULLIF($5, ''), reason),
		    approved_by_user_id = $3,
		    approved_at = now(),
		    updated_at = now()
		WHERE id = $2 AND tenant_id = $1 AND status = $6
		RETURNING id, tenant_id, quote_id, status, COALESCE(reason, ''),
		          approved_by_user_id, approved_at, created_at`

	var a Approval
	err := r.q.QueryRow(ctx, query, tenantID, approvalID, actorID, status, reason, StatusPending).Scan(
		&a.ID, &a.TenantID, &a.QuoteID, &a.Status, &a.Reason,
		&a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.classifyClaimMiss(ctx, tenantID, approvalID)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) classifyClaimMiss(ctx context.Context, tenantID, approvalID uuid.UUID) error {
	const query = `SELECT EXISTS (SELECT 1 FROM approvals WHERE id = $2 AND tenant_id = $1)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, tenantID, approvalID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrAlreadyResolved
	}
	return ErrNotFound
}

// ListPending returns the tenant's review queue, oldest first.
func (r *Repository) ListPending(ctx context.Context, tenantID uuid.UUID) ([]PendingItem, error) {
	const query = `
		SELECT a.id, a.quote_id, q.conversation_id,
		       COALESCE(ct.name, ''), ct.phone,
		       q.total::text, q.margin_pct::text,
		       COALESCE(a.reason, ''), a.created_at
		FROM approvals a
		JOIN quotes q ON q.id = a.quote_id
		JOIN conversations cv ON cv.id = q.conversation_id
		JOIN contacts ct ON ct.id = cv.contact_id
		WHERE a.tenant_id = $1 AND a.status = $2
		ORDER BY a.created_at`

	rows, err := r.q.Query(ctx, query, tenantID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PendingItem
	for rows.Next() {
		var (
			item      PendingItem
			total     string
			marginPct string
		)
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.ConversationID,
			&item.ContactName, &item.ContactPhone, &total, &marginPct,
			&item.Reason, &item.CreatedAt); err != nil {
			return nil, err
		}
		if item.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		if item.MarginPct, err = decimal.NewFromString(marginPct); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RecordAudit appends an immutable audit entry for an entity change.
func (r *Repository) RecordAudit(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID, action string, userID *uuid.UUID, before, after any) error {
	beforeJSON, err := marshalNullable(before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	afterJSON, err := marshalNullable(after)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}

	const query = `
		INSERT INTO audit_log (tenant_id, entity_type, entity_id, action, user_id, before_json, after_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.q.Exec(ctx, query, tenantID, entityType, entityID, action, userID, beforeJSON, afterJSON)
	return err
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
