package adapter

import (
	"context"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

// RawPayload is the gateway wire format flattened to string fields.
type RawPayload map[string]string

// CheckoutPayload is handed to the client, which opens the gateway checkout
// with it. Field names follow the gateway's checkout contract.
type CheckoutPayload struct {
	Key                string `json:"key"`
	Test               bool   `json:"test"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Invoice            string `json:"invoice"`
	Currency           string `json:"currency"`
	Amount             string `json:"amount"`
	TaxBase            string `json:"tax_base"`
	Tax                string `json:"tax"`
	Country            string `json:"country"`
	Lang               string `json:"lang"`
	External           string `json:"external"`
	Extra1             string `json:"extra1"`
	Extra2             string `json:"extra2,omitempty"`
	Extra3             string `json:"extra3,omitempty"`
	ResponseURL        string `json:"response"`
	ConfirmationURL    string `json:"confirmation"`
	NameBilling        string `json:"name_billing"`
	EmailBilling       string `json:"email_billing,omitempty"`
	MobilePhoneBilling string `json:"mobilephone_billing,omitempty"`
	AddressBilling     string `json:"address_billing,omitempty"`
	TypeDocBilling     string `json:"type_doc_billing,omitempty"`
	NumberDocBilling   string `json:"number_doc_billing,omitempty"`
	MethodConfirmation string `json:"method_confirmation"`
}

// ConfirmationResult is the normalised gateway callback.
type ConfirmationResult struct {
	Reference     string
	Success       bool
	ResponseCode  string
	ResponseText  string
	TransactionID string
	PaymentMethod string
	BankName      string
	GatewayRef    string
	Amount        string // as sent by the gateway; empty if absent
}

// PaymentGateway is the hex port for the card gateway.
type PaymentGateway interface {
	Name() string
	// BuildCheckout shapes the outbound checkout data. No network call.
	BuildCheckout(rec *model.PaymentRecord, customer model.CustomerInfo) (*CheckoutPayload, error)
	// ParseConfirmation normalises an inbound confirmation; ErrMalformedPayload
	// when required fields are missing.
	ParseConfirmation(raw RawPayload) (*ConfirmationResult, error)
	// Lookup fetches the gateway's view of a transaction by its gateway reference.
	Lookup(ctx context.Context, gatewayRef string) (RawPayload, error)
}
