package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Freeeeeet/marketplace/internal/gateway"
	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockPayments struct {
	HandleFunc func(ctx context.Context, n gateway.Notification) error
	GetFunc    func(ctx context.Context, tx string) (*model.Payment, error)
	handled    []gateway.Notification
}

func (m *mockPayments) HandleGatewayNotification(ctx context.Context, n gateway.Notification) error {
	m.handled = append(m.handled, n)
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, n)
	}
	return nil
}

func (m *mockPayments) GetPaymentByTransactionID(ctx context.Context, tx string) (*model.Payment, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, tx)
	}
	return nil, &service.NotFoundError{Entity: "payment", ID: tx}
}

type formParser struct{}

func (formParser) ParseNotification(form url.Values) gateway.Notification {
	return gateway.Notification{
		TransactionID: form.Get("tran_id"),
		Status:        form.Get("status"),
		ValidationID:  form.Get("val_id"),
		Outcome:       gateway.OutcomeSuccess,
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(payments *mockPayments, db Pinger) *Server {
	return NewServer(payments, formParser{}, db, "https://app.example.com/", zap.NewNop())
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestIPN(t *testing.T) {
	form := url.Values{"tran_id": {"tx-1"}, "status": {"VALID"}, "val_id": {"v1"}}

	tests := []struct {
		name       string
		form       url.Values
		handleErr  error
		wantStatus int
	}{
		{"processed", form, nil, http.StatusOK},
		{"missing tran_id", url.Values{"status": {"VALID"}}, nil, http.StatusBadRequest},
		{"validation error", form, &service.ValidationError{Field: "tran_id", Message: "is required"}, http.StatusBadRequest},
		{"storage failure", form, errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &mockPayments{HandleFunc: func(context.Context, gateway.Notification) error { return tt.handleErr }}
			s := newTestServer(payments, pinger{})

			w := postForm(t, s, "/api/v1/payments/ipn", tt.form)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestIPN_PassesParsedNotification(t *testing.T) {
	payments := &mockPayments{}
	s := newTestServer(payments, pinger{})

	w := postForm(t, s, "/api/v1/payments/ipn", url.Values{"tran_id": {"tx-9"}, "status": {"VALID"}, "val_id": {"v9"}})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, payments.handled, 1)
	assert.Equal(t, "tx-9", payments.handled[0].TransactionID)
	assert.Equal(t, "v9", payments.handled[0].ValidationID)
}

func TestRedirect(t *testing.T) {
	payments := &mockPayments{
		GetFunc: func(_ context.Context, tx string) (*model.Payment, error) {
			if tx == "tx-1" {
				return &model.Payment{GatewayTransactionID: tx, Status: model.PaymentStatusPending}, nil
			}
			return nil, &service.NotFoundError{Entity: "payment", ID: tx}
		},
	}
	s := newTestServer(payments, pinger{})

	t.Run("known transaction via POST", func(t *testing.T) {
		w := postForm(t, s, "/api/v1/payments/success/tx-1", url.Values{"status": {"VALID"}})
		require.Equal(t, http.StatusSeeOther, w.Code)

		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", loc.Host)
		assert.Equal(t, "/payments/result", loc.Path)
		assert.Equal(t, "success", loc.Query().Get("outcome"))
		assert.Equal(t, "pending", loc.Query().Get("status"))
	})

	t.Run("unknown transaction via GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/cancel/tx-404", nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusSeeOther, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "cancel", loc.Query().Get("outcome"))
		assert.Equal(t, "unknown", loc.Query().Get("status"))
	})

	// редирект не обрабатывает уведомления
	assert.Empty(t, payments.handled)
}

func TestHealth(t *testing.T) {
	for _, tc := range []struct {
		name string
		db   pinger
		want int
	}{
		{"up", pinger{}, http.StatusOK},
		{"down", pinger{err: errors.New("no db")}, http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&mockPayments{}, tc.db)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
