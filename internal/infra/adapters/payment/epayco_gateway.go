package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/config"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*EpaycoGateway)(nil)

// Confirmation fields sent by ePayco.
const (
	FieldReference    = "x_extra1"
	FieldInvoice      = "x_id_invoice"
	FieldResponseCode = "x_cod_response"
	FieldResponseText = "x_response_reason_text"
	FieldResponse     = "x_response"
	FieldTransaction  = "x_transaction_id"
	FieldRefPayco     = "x_ref_payco"
	FieldFranchise    = "x_franchise"
	FieldBankName     = "x_bank_name"
	FieldAmount       = "x_amount"
)

// EpaycoGateway shapes checkout data for the ePayco web checkout, parses its
// confirmations and queries its validation endpoint.
type EpaycoGateway struct {
	publicKey       string
	test            bool
	responseURL     string
	confirmationURL string
	validationURL   string
	currency        string
	country         string
	successCode     string
	client          *http.Client
}

func NewEpaycoGateway(ep config.EpaycoConfig, pay config.PaymentConfig) *EpaycoGateway {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	code := pay.SuccessCode
	if code == "" {
		code = "1"
	}
	return &EpaycoGateway{
		publicKey:       ep.PublicKey,
		test:            ep.Test,
		responseURL:     ep.ResponseURL,
		confirmationURL: ep.ConfirmationURL,
		validationURL:   strings.TrimRight(ep.ValidationURL, "/"),
		currency:        strings.ToLower(pay.Currency),
		country:         strings.ToLower(pay.Country),
		successCode:     code,
		client:          &http.Client{Timeout: timeout},
	}
}

func (g *EpaycoGateway) Name() string { return "epayco" }

// BuildCheckout makes no network call.
func (g *EpaycoGateway) BuildCheckout(rec *model.PaymentRecord, customer model.CustomerInfo) (*adapter.CheckoutPayload, error) {
	if rec == nil || rec.Reference == "" {
		return nil, domain.ErrInvalidArgument
	}
	if rec.GrossAmount != rec.TaxBase+rec.TaxAmount {
		return nil, domain.ErrInvalidAmount
	}
	desc := rec.Description
	if desc == "" {
		desc = rec.ProductName
	}
	p := &adapter.CheckoutPayload{
		Key:                g.publicKey,
		Test:               g.test,
		Name:               rec.ProductName,
		Description:        desc,
		Invoice:            rec.Invoice,
		Currency:           g.currency,
		Amount:             strconv.FormatInt(rec.GrossAmount, 10),
		TaxBase:            strconv.FormatInt(rec.TaxBase, 10),
		Tax:                strconv.FormatInt(rec.TaxAmount, 10),
		Country:            g.country,
		Lang:               "es",
		External:           "false",
		Extra1:             rec.Reference,
		Extra2:             string(rec.ProductKind),
		Extra3:             rec.ProductRefID,
		ResponseURL:        g.responseURL,
		ConfirmationURL:    g.confirmationURL,
		NameBilling:        customer.Name,
		EmailBilling:       customer.Email,
		MobilePhoneBilling: customer.Phone,
		TypeDocBilling:     customer.DocumentType,
		NumberDocBilling:   customer.DocumentNumber,
		MethodConfirmation: http.MethodPost,
	}
	if b := rec.Metadata.Billing; b != nil {
		p.AddressBilling = strings.TrimSpace(strings.Join(nonEmpty(b.Address, b.City, b.Region), ", "))
	}
	return p, nil
}

func nonEmpty(ss ...string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseConfirmation requires a reference, a response code and a transaction id.
// The reference is x_extra1, falling back to the invoice, which carries the
// same value.
func (g *EpaycoGateway) ParseConfirmation(raw adapter.RawPayload) (*adapter.ConfirmationResult, error) {
	get := func(k string) string { return strings.TrimSpace(raw[k]) }

	ref := get(FieldReference)
	if ref == "" {
		ref = get(FieldInvoice)
	}
	res := &adapter.ConfirmationResult{
		Reference:     ref,
		ResponseCode:  get(FieldResponseCode),
		ResponseText:  get(FieldResponseText),
		TransactionID: get(FieldTransaction),
		PaymentMethod: get(FieldFranchise),
		BankName:      get(FieldBankName),
		GatewayRef:    get(FieldRefPayco),
		Amount:        get(FieldAmount),
	}
	if res.ResponseText == "" {
		res.ResponseText = get(FieldResponse)
	}
	var missing []string
	if res.Reference == "" {
		missing = append(missing, "reference")
	}
	if res.ResponseCode == "" {
		missing = append(missing, FieldResponseCode)
	}
	if res.TransactionID == "" {
		missing = append(missing, FieldTransaction)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrMalformedPayload, strings.Join(missing, ", "))
	}
	res.Success = res.ResponseCode == g.successCode
	return res, nil
}

type validationResponse struct {
	Success bool                   `json:"success"`
	Title   string                 `json:"title_response"`
	Text    string                 `json:"text_response"`
	Data    map[string]interface{} `json:"data"`
}

// Lookup fetches the gateway's record of a transaction by its ref_payco.
func (g *EpaycoGateway) Lookup(ctx context.Context, gatewayRef string) (adapter.RawPayload, error) {
	if strings.TrimSpace(gatewayRef) == "" {
		return nil, domain.ErrValidation
	}
	u := g.validationURL + "/" + url.PathEscape(gatewayRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// timeouts and refused connections are both worth another attempt
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrGatewayTimeout, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayTimeout, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", domain.ErrMalformedPayload, resp.StatusCode)
	}

	var vr validationResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&vr); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if !vr.Success || len(vr.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, vr.Text)
	}

	return FlattenJSON(vr.Data), nil
}

// FlattenJSON converts a decoded JSON object into the string map the gateway
// parser reads. Decode with UseNumber so amounts keep their literal form.
func FlattenJSON(m map[string]any) adapter.RawPayload {
	out := make(adapter.RawPayload, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case nil:
		case string:
			out[k] = x
		case json.Number:
			out[k] = x.String()
		case bool:
			out[k] = strconv.FormatBool(x)
		default:
			b, _ := json.Marshal(x)
			out[k] = string(b)
		}
	}
	return out
}
