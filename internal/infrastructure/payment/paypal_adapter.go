package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	pay "github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

const (
	paypalTokenPath   = "/v1/oauth2/token"
	paypalPaymentPath = "/v1/payments/payment"
	paypalExecutePath = "/v1/payments/payment/%s/execute"
	paypalGetPath     = "/v1/payments/payment/%s"
	paypalRefundPath  = "/v1/payments/sale/%s/refund"
	paypalVerifyPath  = "/v1/notifications/verify-webhook-signature"

	paypalItemNameMax = 127
	// tokens are refreshed this long before PayPal expires them
	paypalTokenSkew = time.Minute
)

// PayPal transmission headers sent with every webhook delivery
const (
	paypalHeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	paypalHeaderCertURL          = "PAYPAL-CERT-URL"
	paypalHeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	paypalHeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	paypalHeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

// PayPalAdapter implements pay.Provider against the PayPal REST v1 payments API
type PayPalAdapter struct {
	config     *PayPalConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPayPalAdapter creates a new PayPal adapter
func NewPayPalAdapter(config *PayPalConfig, logger *zap.Logger) (*PayPalAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PayPalAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With(zap.String("provider", pay.ProviderPayPal)),
		now:    time.Now,
	}, nil
}

// Name returns the provider name
func (a *PayPalAdapter) Name() string {
	return pay.ProviderPayPal
}

// CreateIntent creates a sale payment and returns its approval URL
func (a *PayPalAdapter) CreateIntent(ctx context.Context, req pay.IntentRequest) (*pay.Intent, error) {
	currency := strings.ToUpper(req.Currency)

	items := make([]paypalItem, 0, len(req.Items))
	sum := decimal.Zero
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, shared.NewValidationError("items.quantity", "Invalid quantity for product: "+it.Name)
		}
		if !it.Price.IsPositive() {
			return nil, shared.NewValidationError("items.price", "Invalid price for product: "+it.Name)
		}
		price := valueobject.RoundMoney(it.Price)
		items = append(items, paypalItem{
			Name:     truncateRunes(it.Name, paypalItemNameMax),
			Price:    valueobject.FormatAmount(price),
			Currency: currency,
			Quantity: strconv.Itoa(it.Quantity),
		})
		sum = sum.Add(valueobject.LineTotal(price, it.Quantity))
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("items", "No items in order")
	}
	total := valueobject.FormatAmount(req.Amount)
	if valueobject.FormatAmount(sum) != total {
		a.logger.Error("Order total mismatch",
			zap.String("order_id", req.OrderID.String()),
			zap.String("calculated_total", valueobject.FormatAmount(sum)),
			zap.String("order_total", total))
		return nil, shared.NewValidationError("total_amount", "Order total does not match its items")
	}

	body := paypalPaymentRequest{
		Intent: "sale",
		Payer:  paypalPayer{PaymentMethod: "paypal"},
		Transactions: []paypalTransaction{{
			Amount: paypalAmount{
				Total:    total,
				Currency: currency,
				Details:  &paypalDetails{Subtotal: total},
			},
			ItemList:      &paypalItemList{Items: items},
			Description:   "Order #" + req.OrderNumber,
			InvoiceNumber: req.OrderNumber,
			Custom:        req.OrderID.String(),
		}},
		RedirectURLs: paypalRedirectURLs{
			ReturnURL: a.config.ReturnURL(),
			CancelURL: a.config.CancelURL(req.OrderID.String()),
		},
	}

	var created paypalPayment
	if err := a.doRequest(ctx, "create_payment", http.MethodPost, paypalPaymentPath, "intent-"+req.OrderID.String(), body, &created); err != nil {
		a.logger.Error("Failed to create PayPal payment",
			zap.String("order_id", req.OrderID.String()),
			zap.Error(err))
		return nil, err
	}

	approval := created.approvalURL()
	if created.ID == "" || approval == "" {
		return nil, &pay.ProviderError{Provider: pay.ProviderPayPal, Op: "create_payment", Message: "response has no payment id or approval url"}
	}

	a.logger.Info("Created PayPal payment",
		zap.String("order_id", req.OrderID.String()),
		zap.String("payment_id", created.ID),
		zap.String("state", created.State))

	return &pay.Intent{ProviderRef: created.ID, ApprovalURL: approval}, nil
}

// Capture executes an approved payment
func (a *PayPalAdapter) Capture(ctx context.Context, providerRef, payerID string) (*pay.CaptureResult, error) {
	var executed paypalPayment
	err := a.doRequest(ctx, "execute", http.MethodPost, fmt.Sprintf(paypalExecutePath, url.PathEscape(providerRef)),
		"", paypalExecuteRequest{PayerID: payerID}, &executed)
	if err != nil {
		var pe *pay.ProviderError
		if !errors.As(err, &pe) || pe.Code != "PAYMENT_ALREADY_DONE" {
			return nil, err
		}
		// a repeated return from PayPal; report the state of the earlier execution
		if err := a.getPayment(ctx, providerRef, &executed); err != nil {
			return nil, err
		}
	}

	result := &pay.CaptureResult{
		ProviderRef: providerRef,
		Approved:    executed.State == "approved",
		State:       executed.State,
	}
	if sale := executed.sale(); sale != nil {
		result.CaptureRef = sale.ID
		if sale.Amount != nil {
			result.Amount = parseAmount(sale.Amount.Total)
		}
	}

	a.logger.Info("Executed PayPal payment",
		zap.String("payment_id", providerRef),
		zap.String("state", executed.State))
	return result, nil
}

// Refund refunds the sale created when the payment was executed
func (a *PayPalAdapter) Refund(ctx context.Context, req pay.RefundRequest) (*pay.RefundResult, error) {
	saleID := req.CaptureRef
	if saleID == "" || saleID == req.ProviderRef {
		var p paypalPayment
		if err := a.getPayment(ctx, req.ProviderRef, &p); err != nil {
			return nil, err
		}
		sale := p.sale()
		if sale == nil {
			return nil, &pay.ProviderError{Provider: pay.ProviderPayPal, Op: "refund", Message: "payment has no sale to refund"}
		}
		saleID = sale.ID
	}

	body := paypalRefundRequest{Amount: paypalAmount{
		Total:    valueobject.FormatAmount(req.Amount),
		Currency: strings.ToUpper(req.Currency),
	}}
	var refund paypalRefund
	if err := a.doRequest(ctx, "refund", http.MethodPost, fmt.Sprintf(paypalRefundPath, url.PathEscape(saleID)),
		"refund-"+req.OrderID.String(), body, &refund); err != nil {
		a.logger.Error("PayPal refund failed",
			zap.String("order_id", req.OrderID.String()),
			zap.String("sale_id", saleID),
			zap.Error(err))
		return nil, err
	}
	if refund.State == "failed" {
		return nil, &pay.ProviderError{Provider: pay.ProviderPayPal, Op: "refund", Code: refund.State, Message: "refund " + refund.ID + " failed"}
	}

	a.logger.Info("PayPal refund processed",
		zap.String("order_id", req.OrderID.String()),
		zap.String("refund_id", refund.ID))
	return &pay.RefundResult{RefundID: refund.ID, Status: refund.State}, nil
}

// GetStatus looks up the payment
func (a *PayPalAdapter) GetStatus(ctx context.Context, providerRef string) (*pay.StatusResult, error) {
	var p paypalPayment
	if err := a.getPayment(ctx, providerRef, &p); err != nil {
		return nil, err
	}
	result := &pay.StatusResult{Provider: pay.ProviderPayPal, Status: p.State}
	if len(p.Transactions) > 0 {
		if amount := parseAmount(p.Transactions[0].Amount.Total); amount != nil {
			result.Amount = *amount
		}
		result.Currency = strings.ToLower(p.Transactions[0].Amount.Currency)
	}
	if sale := p.sale(); sale != nil && p.State == "approved" {
		result.Completed = sale.State == "completed"
	}
	return result, nil
}

func (a *PayPalAdapter) getPayment(ctx context.Context, id string, out *paypalPayment) error {
	return a.doRequest(ctx, "get_payment", http.MethodGet, fmt.Sprintf(paypalGetPath, url.PathEscape(id)), "", nil, out)
}

// ParseWebhook verifies the delivery with PayPal and normalizes it
func (a *PayPalAdapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*pay.NormalizedEvent, error) {
	if a.config.WebhookID == "" {
		return nil, pay.ErrVerification(pay.ProviderPayPal, fmt.Errorf("webhook id is not configured"))
	}
	verify := paypalVerifyRequest{
		AuthAlgo:         headers.Get(paypalHeaderAuthAlgo),
		CertURL:          headers.Get(paypalHeaderCertURL),
		TransmissionID:   headers.Get(paypalHeaderTransmissionID),
		TransmissionSig:  headers.Get(paypalHeaderTransmissionSig),
		TransmissionTime: headers.Get(paypalHeaderTransmissionTime),
		WebhookID:        a.config.WebhookID,
	}
	if verify.AuthAlgo == "" || verify.CertURL == "" || verify.TransmissionID == "" ||
		verify.TransmissionSig == "" || verify.TransmissionTime == "" {
		return nil, pay.ErrVerification(pay.ProviderPayPal, fmt.Errorf("missing transmission headers"))
	}
	if !json.Valid(payload) {
		return nil, pay.ErrVerification(pay.ProviderPayPal, fmt.Errorf("payload is not valid JSON"))
	}
	verify.WebhookEvent = payload

	var verified paypalVerifyResponse
	if err := a.doRequest(ctx, "verify_webhook", http.MethodPost, paypalVerifyPath, "", verify, &verified); err != nil {
		if pay.IsUnavailable(err) {
			return nil, err
		}
		return nil, pay.ErrVerification(pay.ProviderPayPal, err)
	}
	if verified.VerificationStatus != "SUCCESS" {
		return nil, pay.ErrVerification(pay.ProviderPayPal,
			fmt.Errorf("verification status %q", verified.VerificationStatus))
	}

	var ev paypalWebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, shared.NewValidationError("resource", "Malformed PayPal event")
	}
	return a.normalize(&ev), nil
}

func (a *PayPalAdapter) normalize(ev *paypalWebhookEvent) *pay.NormalizedEvent {
	normalized := &pay.NormalizedEvent{
		EventID:     ev.ID,
		Provider:    pay.ProviderPayPal,
		RawType:     ev.EventType,
		ProviderRef: ev.Resource.ParentPayment,
	}

	switch ev.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.SALE.COMPLETED":
		normalized.Type = pay.EventCaptured
		normalized.CaptureRef = ev.Resource.ID
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.SALE.DENIED":
		normalized.Type = pay.EventFailed
	case "PAYMENT.CAPTURE.REFUNDED", "PAYMENT.SALE.REFUNDED":
		normalized.Type = pay.EventRefunded
		normalized.RefundRef = ev.Resource.ID
		normalized.CaptureRef = ev.Resource.SaleID
	default:
		a.logger.Info("Unhandled PayPal webhook event", zap.String("event_type", ev.EventType))
		return nil
	}

	custom := ev.Resource.CustomID
	if custom == "" {
		custom = ev.Resource.Custom
	}
	if id, err := uuid.Parse(custom); err == nil {
		normalized.OrderID = &id
	}

	total := ev.Resource.Amount.Total
	if total == "" {
		total = ev.Resource.Amount.Value
	}
	normalized.Amount = parseAmount(total)
	return normalized
}

// accessToken returns the cached OAuth token, fetching a new one when it is
// missing or about to expire. The lock is held across the fetch so concurrent
// callers share one token request.
func (a *PayPalAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.tokenExpiry) {
		return a.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL()+paypalTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: failed to create token request: %w", err)
	}
	req.SetBasicAuth(a.config.ClientID, a.config.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok paypalTokenResponse
	if err := a.send(req, "oauth_token", &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &pay.ProviderError{Provider: pay.ProviderPayPal, Op: "oauth_token", Message: "empty access token"}
	}

	a.token = tok.AccessToken
	a.tokenExpiry = a.now().Add(time.Duration(tok.ExpiresIn)*time.Second - paypalTokenSkew)
	return a.token, nil
}

func (a *PayPalAdapter) invalidateToken() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

// doRequest performs an authenticated JSON call to the PayPal API
func (a *PayPalAdapter) doRequest(ctx context.Context, op, method, path, requestID string, body, out any) error {
	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paypal: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL()+path, reqBody)
	if err != nil {
		return fmt.Errorf("paypal: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	err = a.send(req, op, out)
	var pe *pay.ProviderError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusUnauthorized {
		a.invalidateToken()
	}
	return err
}

// send executes req and decodes a 2xx JSON body into out. Transport failures
// and 429/5xx answers are retryable ProviderErrors.
func (a *PayPalAdapter) send(req *http.Request, op string, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &pay.ProviderError{Provider: pay.ProviderPayPal, Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pay.ProviderError{Provider: pay.ProviderPayPal, Op: op, Retryable: true, Err: err}
	}

	if resp.StatusCode >= 400 {
		pe := &pay.ProviderError{
			Provider:   pay.ProviderPayPal,
			Op:         op,
			StatusCode: resp.StatusCode,
			Retryable:  pay.IsRetryableStatus(resp.StatusCode),
			Message:    http.StatusText(resp.StatusCode),
		}
		var errResp paypalErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			switch {
			case errResp.Name != "":
				pe.Code, pe.Message = errResp.Name, errResp.Message
			case errResp.Error != "":
				pe.Code, pe.Message = errResp.Error, errResp.ErrorDescription
			}
		}
		return pe
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("paypal: failed to parse response: %w", err)
	}
	return nil
}

func parseAmount(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	d = d.Abs()
	return &d
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

var _ pay.Provider = (*PayPalAdapter)(nil)
