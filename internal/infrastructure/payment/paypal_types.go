package payment

import "encoding/json"

// PayPal REST v1 wire types. Amounts are decimal strings ("240.00").

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type paypalDetails struct {
	Subtotal string `json:"subtotal"`
}

type paypalAmount struct {
	Total    string         `json:"total"`
	Currency string         `json:"currency"`
	Details  *paypalDetails `json:"details,omitempty"`
}

type paypalItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity string `json:"quantity"`
}

type paypalItemList struct {
	Items []paypalItem `json:"items"`
}

type paypalSale struct {
	ID     string        `json:"id"`
	State  string        `json:"state"`
	Amount *paypalAmount `json:"amount,omitempty"`
}

type paypalRelatedResource struct {
	Sale *paypalSale `json:"sale,omitempty"`
}

type paypalTransaction struct {
	Amount           paypalAmount            `json:"amount"`
	ItemList         *paypalItemList         `json:"item_list,omitempty"`
	Description      string                  `json:"description,omitempty"`
	InvoiceNumber    string                  `json:"invoice_number,omitempty"`
	Custom           string                  `json:"custom,omitempty"`
	RelatedResources []paypalRelatedResource `json:"related_resources,omitempty"`
}

type paypalRedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type paypalPayer struct {
	PaymentMethod string `json:"payment_method"`
}

type paypalPaymentRequest struct {
	Intent       string              `json:"intent"`
	Payer        paypalPayer         `json:"payer"`
	Transactions []paypalTransaction `json:"transactions"`
	RedirectURLs paypalRedirectURLs  `json:"redirect_urls"`
}

type paypalPayment struct {
	ID           string              `json:"id"`
	State        string              `json:"state"`
	Transactions []paypalTransaction `json:"transactions"`
	Links        []paypalLink        `json:"links"`
}

// sale returns the first sale attached to the payment, if any
func (p *paypalPayment) sale() *paypalSale {
	for _, tx := range p.Transactions {
		for _, rr := range tx.RelatedResources {
			if rr.Sale != nil {
				return rr.Sale
			}
		}
	}
	return nil
}

func (p *paypalPayment) approvalURL() string {
	for _, l := range p.Links {
		if l.Rel == "approval_url" {
			return l.Href
		}
	}
	return ""
}

type paypalExecuteRequest struct {
	PayerID string `json:"payer_id"`
}

type paypalRefundRequest struct {
	Amount paypalAmount `json:"amount"`
}

type paypalRefund struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// paypalWebhookEvent covers both v1 sale and v2 capture resources
type paypalWebhookEvent struct {
	ID           string `json:"id"`
	EventType    string `json:"event_type"`
	ResourceType string `json:"resource_type"`
	Resource     struct {
		ID            string `json:"id"`
		State         string `json:"state"`
		Status        string `json:"status"`
		Custom        string `json:"custom"`
		CustomID      string `json:"custom_id"`
		ParentPayment string `json:"parent_payment"`
		SaleID        string `json:"sale_id"`
		Amount        struct {
			Total        string `json:"total"`
			Value        string `json:"value"`
			Currency     string `json:"currency"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
	} `json:"resource"`
}

type paypalErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	// OAuth errors use these instead
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
