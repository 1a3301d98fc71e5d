package payex

import "strings"

// Base URLs and endpoint paths of the processor API.
const (
	APIURL        = "https://api.payex.io/"
	APIURLSandbox = "https://sandbox-payexapi.azurewebsites.net/"

	tokenPath       = "api/Auth/Token"
	paymentsPath    = "api/v1/PaymentIntents"
	mandatesPath    = "api/v1/Mandates"
	collectionsPath = "api/v1/Mandates/Collections"
)

// Credentials identify a merchant account. Sandbox selects the base URL.
type Credentials struct {
	Email     string
	SecretKey string
	Sandbox   bool
}

// BaseURL returns the API root matching the environment flag.
func (c Credentials) BaseURL() string {
	if c.Sandbox {
		return APIURLSandbox
	}
	return APIURL
}

// Token is a short-lived bearer token. It is fetched fresh for every outbound
// operation and never cached.
type Token struct {
	Value   string
	Sandbox bool
}

// Item is an order line as serialised into outbound payloads.
type Item struct {
	ProductID string `json:"product_id,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

// PaymentIntentRequest is the outbound payload for a one-off hosted checkout.
// Amounts are integer minor currency units.
type PaymentIntentRequest struct {
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	CustomerID       string `json:"customer_id"`
	Description      string `json:"description"`
	ReferenceNumber  string `json:"reference_number"`
	CustomerName     string `json:"customer_name"`
	ContactNumber    string `json:"contact_number"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Postcode         string `json:"postcode"`
	City             string `json:"city"`
	State            string `json:"state"`
	Country          string `json:"country"`
	ShippingName     string `json:"shipping_name"`
	ShippingAddress  string `json:"shipping_address"`
	ShippingPostcode string `json:"shipping_postcode"`
	ShippingCity     string `json:"shipping_city"`
	ShippingState    string `json:"shipping_state"`
	ShippingCountry  string `json:"shipping_country"`
	ReturnURL        string `json:"return_url"`
	AcceptURL        string `json:"accept_url"`
	RejectURL        string `json:"reject_url"`
	CallbackURL      string `json:"callback_url"`
	Items            []Item `json:"items"`
	Source           string `json:"source"`
}

// MandateRequest is the outbound payload for a recurring payment mandate.
// DebitType is only emitted when an initial payment exists; the remote
// default for the absent case is undocumented, so the field stays optional.
type MandateRequest struct {
	InitialAmount     int64  `json:"initial_amount"`
	MaxAmount         int64  `json:"max_amount"`
	DebitType         string `json:"debit_type,omitempty"`
	Frequency         string `json:"frequency"`
	FrequencyInterval int    `json:"frequency_interval"`
	EffectiveDate     string `json:"effective_date"`
	ExpiryDate        string `json:"expiry_date,omitempty"`
	MaxFrequency      int    `json:"max_frequency"`
	Currency          string `json:"currency"`
	CustomerID        string `json:"customer_id"`
	Description       string `json:"description"`
	ReferenceNumber   string `json:"reference_number"`
	CustomerName      string `json:"customer_name"`
	ContactNumber     string `json:"contact_number"`
	Email             string `json:"email"`
	Address           string `json:"address"`
	Postcode          string `json:"postcode"`
	City              string `json:"city"`
	State             string `json:"state"`
	Country           string `json:"country"`
	ShippingName      string `json:"shipping_name"`
	ShippingAddress   string `json:"shipping_address"`
	ShippingPostcode  string `json:"shipping_postcode"`
	ShippingCity      string `json:"shipping_city"`
	ShippingState     string `json:"shipping_state"`
	ShippingCountry   string `json:"shipping_country"`
	ReturnURL         string `json:"return_url"`
	AcceptURL         string `json:"accept_url"`
	RejectURL         string `json:"reject_url"`
	CallbackURL       string `json:"callback_url"`
	Items             []Item `json:"items"`
	Source            string `json:"source"`
}

// CollectionRequest is the outbound payload executing one recurring charge
// against an existing mandate.
type CollectionRequest struct {
	MandateReferenceNumber string `json:"mandate_reference_number"`
	ReferenceNumber        string `json:"reference_number"`
	Amount                 int64  `json:"amount"`
	Currency               string `json:"currency"`
	Description            string `json:"description"`
	Source                 string `json:"source"`
}

// CollectionResult carries the fields extracted from a successful
// collection submission.
type CollectionResult struct {
	CollectionNumber string
	Status           string
}

type apiResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Result  []resultEntry `json:"result"`
}

type resultEntry struct {
	URL              string `json:"url"`
	CollectionNumber string `json:"collection_number"`
	Status           string `json:"status"`
	Error            string `json:"error"`
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
