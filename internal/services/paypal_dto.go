package services

// PayPal Orders v2 wire types. Only the fields this service reads or writes are mapped.

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// PayPalAmount is a currency amount in the provider's string form.
type PayPalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// PayPalPurchaseUnit is one purchase unit of an order request.
type PayPalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Description string       `json:"description,omitempty"`
	Amount      PayPalAmount `json:"amount"`
}

// PayPalApplicationContext customises the approval page.
type PayPalApplicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	LandingPage        string `json:"landing_page,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
}

// PayPalOrderRequest is the body of a create-order call.
type PayPalOrderRequest struct {
	Intent             string                    `json:"intent"`
	PurchaseUnits      []PayPalPurchaseUnit      `json:"purchase_units"`
	ApplicationContext *PayPalApplicationContext `json:"application_context,omitempty"`
}

// PayPalLink is a HATEOAS link returned with an order.
type PayPalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// PayPalPayer identifies the buyer that approved an order.
type PayPalPayer struct {
	PayerID      string `json:"payer_id"`
	EmailAddress string `json:"email_address,omitempty"`
	Name         *struct {
		GivenName string `json:"given_name"`
		Surname   string `json:"surname"`
	} `json:"name,omitempty"`
}

// PayPalOrder is the provider's view of an order (create and details responses).
type PayPalOrder struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Links      []PayPalLink `json:"links"`
	CreateTime string       `json:"create_time,omitempty"`
	Payer      *PayPalPayer `json:"payer,omitempty"`
}

// ApprovalURL returns the link the buyer follows to authorise payment.
func (o PayPalOrder) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

type paypalCapture struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Amount PayPalAmount `json:"amount"`
}

type paypalCapturePurchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	Payments    struct {
		Captures []paypalCapture `json:"captures"`
	} `json:"payments"`
}

// PayPalCaptureResponse is the body returned by a capture call.
type PayPalCaptureResponse struct {
	ID            string                      `json:"id"`
	Status        string                      `json:"status"`
	Payer         *PayPalPayer                `json:"payer,omitempty"`
	PurchaseUnits []paypalCapturePurchaseUnit `json:"purchase_units"`
}

// PayerID returns the payer id, or "" when the provider did not send one.
func (r PayPalCaptureResponse) PayerID() string {
	if r.Payer == nil {
		return ""
	}
	return r.Payer.PayerID
}

// CapturedAmount returns the first capture's amount value as sent by the provider.
func (r PayPalCaptureResponse) CapturedAmount() string {
	if len(r.PurchaseUnits) == 0 {
		return ""
	}
	captures := r.PurchaseUnits[0].Payments.Captures
	if len(captures) == 0 {
		return ""
	}
	return captures[0].Amount.Value
}
