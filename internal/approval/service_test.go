package approval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"orcazap/internal/conversation"
	"orcazap/internal/pricing"
	"orcazap/internal/quotes"
	"orcazap/internal/tenant"
	"orcazap/platform/apperr"
	"orcazap/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeResolver struct {
	view    *View
	err     error
	lastRes Resolution
	// captured by the Send callback when it runs
	sentProviderID string
	sentText       string
}

func (f *fakeResolver) ListPending(ctx context.Context, tenantID uuid.UUID) ([]PendingItem, error) {
	return nil, f.err
}

func (f *fakeResolver) Resolve(ctx context.Context, res Resolution) (*Approval, error) {
	f.lastRes = res
	if f.err != nil {
		return nil, f.err
	}
	if res.Send != nil {
		providerID, text, err := res.Send(ctx, f.view)
		if err != nil {
			return nil, err
		}
		f.sentProviderID = providerID
		f.sentText = text
	}
	return f.view.Approval, nil
}

type fakeSender struct {
	calls     int
	lastPhone string
	lastTo    string
	lastText  string
	err       error
}

func (f *fakeSender) SendText(ctx context.Context, phoneNumberID, toPhone, text string) (string, error) {
	f.calls++
	f.lastPhone = phoneNumberID
	f.lastTo = toPhone
	f.lastText = text
	if f.err != nil {
		return "", f.err
	}
	return "wamid.OUT1", nil
}

func testView() *View {
	tenantID := uuid.New()
	return &View{
		Approval: &Approval{
			ID:       uuid.New(),
			TenantID: tenantID,
			QuoteID:  uuid.New(),
			Status:   StatusApproved,
		},
		Quote: &quotes.Quote{
			ID:       uuid.New(),
			TenantID: tenantID,
			Items: []pricing.PricedLine{{
				Name:      "Cimento CP-II 50kg",
				Unit:      "un",
				Quantity:  decimal.NewFromInt(10),
				UnitPrice: decimal.RequireFromString("45.00"),
				LineTotal: decimal.RequireFromString("450.00"),
			}},
			Subtotal:   decimal.RequireFromString("450.00"),
			Freight:    decimal.RequireFromString("45.00"),
			Total:      decimal.RequireFromString("495.00"),
			ValidUntil: time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC),
		},
		Contact: &conversation.Contact{
			ID:    uuid.New(),
			Phone: "+5511999887766",
			Name:  "João",
		},
		Channel: &tenant.Channel{
			ID:            uuid.New(),
			PhoneNumberID: "1055501234",
		},
	}
}

func TestApproveSendsQuoteAndResolves(t *testing.T) {
	resolver := &fakeResolver{view: testView()}
	sender := &fakeSender{}
	svc := NewService(resolver, sender, 24*time.Hour, logger.New("development"))

	tenantID := resolver.view.Approval.TenantID
	actorID := uuid.New()

	approved, err := svc.Approve(context.Background(), tenantID, resolver.view.Approval.ID, actorID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.ID != resolver.view.Approval.ID {
		t.Errorf("approved ID = %s, want %s", approved.ID, resolver.view.Approval.ID)
	}

	if sender.calls != 1 {
		t.Fatalf("sender calls = %d, want 1", sender.calls)
	}
	if sender.lastPhone != "1055501234" {
		t.Errorf("phone number ID = %q, want %q", sender.lastPhone, "1055501234")
	}
	if sender.lastTo != "+5511999887766" {
		t.Errorf("recipient = %q, want contact phone", sender.lastTo)
	}
	if !strings.Contains(sender.lastText, "Cimento CP-II 50kg") {
		t.Errorf("quote message missing item name: %q", sender.lastText)
	}
	if !strings.Contains(sender.lastText, "495,00") {
		t.Errorf("quote message missing total: %q", sender.lastText)
	}

	if !resolver.lastRes.Approve {
		t.Error("resolution should be an approve")
	}
	if resolver.lastRes.ActorID != actorID {
		t.Errorf("actor ID = %s, want %s", resolver.lastRes.ActorID, actorID)
	}
	wantWindow := time.Now().Add(24 * time.Hour)
	if diff := resolver.lastRes.WindowExpiresAt.Sub(wantWindow); diff < -time.Minute || diff > time.Minute {
		t.Errorf("window expiry = %v, want ~%v", resolver.lastRes.WindowExpiresAt, wantWindow)
	}
	if resolver.sentProviderID != "wamid.OUT1" {
		t.Errorf("recorded provider message ID = %q, want %q", resolver.sentProviderID, "wamid.OUT1")
	}
}

func TestApproveDeliveryFailureSurfacesUnavailable(t *testing.T) {
	resolver := &fakeResolver{view: testView()}
	sender := &fakeSender{err: errors.New("connection refused")}
	svc := NewService(resolver, sender, 24*time.Hour, logger.New("development"))

	_, err := svc.Approve(context.Background(), resolver.view.Approval.TenantID, resolver.view.Approval.ID, uuid.New())
	if err == nil {
		t.Fatal("Approve() expected error on delivery failure")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUnavailable {
		t.Errorf("error = %v, want KindUnavailable", err)
	}
}

func TestRejectDoesNotSend(t *testing.T) {
	view := testView()
	view.Approval.Status = StatusRejected
	resolver := &fakeResolver{view: view}
	sender := &fakeSender{}
	svc := NewService(resolver, sender, 24*time.Hour, logger.New("development"))

	rejected, err := svc.Reject(context.Background(), view.Approval.TenantID, view.Approval.ID, uuid.New(), "margem insuficiente")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Errorf("status = %s, want %s", rejected.Status, StatusRejected)
	}
	if sender.calls != 0 {
		t.Errorf("sender calls = %d, want 0", sender.calls)
	}
	if resolver.lastRes.Approve {
		t.Error("resolution should be a reject")
	}
	if resolver.lastRes.Reason != "margem insuficiente" {
		t.Errorf("reason = %q, want pass-through", resolver.lastRes.Reason)
	}
	if resolver.lastRes.Send != nil {
		t.Error("reject must not carry a send callback")
	}
}

func TestResolveErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		wantKind apperr.Kind
	}{
		{"not found", ErrNotFound, apperr.KindNotFound},
		{"already resolved", ErrAlreadyResolved, apperr.KindConflict},
		{"storage failure", errors.New("tx aborted"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{err: tt.storeErr}
			svc := NewService(resolver, &fakeSender{}, time.Hour, logger.New("development"))

			_, err := svc.Reject(context.Background(), uuid.New(), uuid.New(), uuid.New(), "")
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != tt.wantKind {
				t.Errorf("error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}
