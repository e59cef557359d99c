package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"agrego/internal/domain/account"
)

// MockAccountRepo implements account.Repository
type MockAccountRepo struct {
	SetSyncEnabledFunc func(ctx context.Context, id, userID int64, enabled bool) error
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) GetByProviderAccountID(ctx context.Context, userID int64, providerAccountID string) (*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) ListByConnectionID(ctx context.Context, connectionID int64) ([]*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	return nil, nil
}
func (m *MockAccountRepo) UpdateFromSync(ctx context.Context, id int64, params account.SyncParams) error {
	return nil
}
func (m *MockAccountRepo) SetSyncEnabled(ctx context.Context, id, userID int64, enabled bool) error {
	if m.SetSyncEnabledFunc != nil {
		return m.SetSyncEnabledFunc(ctx, id, userID, enabled)
	}
	return nil
}
func (m *MockAccountRepo) GetCreditCard(ctx context.Context, accountID int64) (*account.CreditCard, error) {
	return nil, nil
}
func (m *MockAccountRepo) UpsertCreditCard(ctx context.Context, accountID int64, params account.CreditCardParams) error {
	return nil
}

func putSyncToggle(t *testing.T, h *AccountHandler, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/accounts/"+id+"/sync", bytes.NewReader([]byte(body)))
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleSyncToggle(rec, req)
	return rec
}

func TestHandleSyncToggle_DisablesAccount(t *testing.T) {
	var gotID, gotUser int64
	var gotEnabled bool
	repo := &MockAccountRepo{
		SetSyncEnabledFunc: func(ctx context.Context, id, userID int64, enabled bool) error {
			gotID, gotUser, gotEnabled = id, userID, enabled
			return nil
		},
	}
	h := NewAccountHandler(repo)

	rec := putSyncToggle(t, h, "42", `{"userId":7,"enabled":false}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotID != 42 || gotUser != 7 || gotEnabled {
		t.Errorf("SetSyncEnabled(%d, %d, %v), want (42, 7, false)", gotID, gotUser, gotEnabled)
	}
}

func TestHandleSyncToggle_Validation(t *testing.T) {
	h := NewAccountHandler(&MockAccountRepo{})

	tests := []struct {
		name string
		id   string
		body string
	}{
		{"bad account id", "abc", `{"userId":7,"enabled":true}`},
		{"missing user", "42", `{"enabled":true}`},
		{"missing enabled", "42", `{"userId":7}`},
		{"malformed body", "42", `{"userId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := putSyncToggle(t, h, tt.id, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleSyncToggle_UnknownAccount(t *testing.T) {
	repo := &MockAccountRepo{
		SetSyncEnabledFunc: func(ctx context.Context, id, userID int64, enabled bool) error {
			return account.ErrAccountNotFound
		},
	}
	h := NewAccountHandler(repo)

	rec := putSyncToggle(t, h, "42", `{"userId":7,"enabled":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
