package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appcart "github.com/storefront/backend/internal/application/cart"
	apporder "github.com/storefront/backend/internal/application/order"
	apppayment "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

const testRequestID = "req-test-1"

// MockCartService implements CartService for testing
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) List(ctx context.Context, userID uuid.UUID) (*appcart.Draft, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcart.Draft), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.Line, error) {
	args := m.Called(ctx, userID, productID, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.Line, error) {
	args := m.Called(ctx, userID, productID, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// MockOrderService implements OrderService for testing
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, p shared.Principal, in apporder.CheckoutInput) (*apporder.CheckoutResult, error) {
	args := m.Called(ctx, p, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.CheckoutResult), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, p shared.Principal, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListForUser(ctx context.Context, p shared.Principal, page shared.Page) (shared.Paginated[order.Order], error) {
	args := m.Called(ctx, p, page)
	return args.Get(0).(shared.Paginated[order.Order]), args.Error(1)
}

func (m *MockOrderService) ListAll(ctx context.Context, p shared.Principal, f apporder.AdminFilter) (shared.Paginated[order.Order], error) {
	args := m.Called(ctx, p, f)
	return args.Get(0).(shared.Paginated[order.Order]), args.Error(1)
}

func (m *MockOrderService) PaymentStatus(ctx context.Context, p shared.Principal, id uuid.UUID) (*payment.StatusResult, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.StatusResult), args.Error(1)
}

func (m *MockOrderService) Refund(ctx context.Context, p shared.Principal, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, p shared.Principal, id uuid.UUID, status string) (*order.Order, error) {
	args := m.Called(ctx, p, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) Delete(ctx context.Context, p shared.Principal, id uuid.UUID) error {
	return m.Called(ctx, p, id).Error(0)
}

// MockPaymentGateway implements PaymentGateway for testing
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*apppayment.WebhookResult, error) {
	args := m.Called(ctx, provider, payload, headers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.WebhookResult), args.Error(1)
}

func (m *MockPaymentGateway) CompleteRedirect(ctx context.Context, paymentID, payerID string) (*apppayment.WebhookResult, error) {
	args := m.Called(ctx, paymentID, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.WebhookResult), args.Error(1)
}

func (m *MockPaymentGateway) CancelRedirect(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*apppayment.WebhookResult, error) {
	args := m.Called(ctx, principal, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apppayment.WebhookResult), args.Error(1)
}

// newTestRouter stamps a request id and, when p is non-nil, the principal
// JWTAuth would have set
func newTestRouter(p *shared.Principal) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(logger.GinRequestIDKey, testRequestID)
		if p != nil {
			c.Set(middleware.PrincipalKey, *p)
		}
		c.Next()
	})
	r.Use(middleware.Locale())
	return r
}

func customer() *shared.Principal {
	return &shared.Principal{UserID: uuid.New(), Roles: []string{"customer"}}
}

func admin() *shared.Principal {
	return &shared.Principal{UserID: uuid.New(), Roles: []string{shared.RoleAdmin}}
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// envelope decodes the response with Data left raw for a second decode
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *dto.ErrorInfo  `json:"error"`
	Meta      *dto.Meta       `json:"meta"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
