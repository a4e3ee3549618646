package model

import (
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
)

type PaymentState string

const (
	PaymentStatePending PaymentState = "pending" // checkout handed to the gateway; awaiting confirmation
	PaymentStateSuccess PaymentState = "exitoso" // gateway confirmed the charge
	PaymentStateFailed  PaymentState = "fallido" // gateway rejected or failed the charge
)

// IsTerminal reports whether no further transition is allowed from s.
func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateSuccess || s == PaymentStateFailed
}

type ProductKind string

const (
	ProductCourse     ProductKind = "course"
	ProductTutorial   ProductKind = "tutorial"
	ProductMembership ProductKind = "membership"
)

func (k ProductKind) Valid() bool {
	switch k {
	case ProductCourse, ProductTutorial, ProductMembership:
		return true
	}
	return false
}

// PaymentRecord is the durable payment intent identified by its reference.
// Amounts are whole COP units.
type PaymentRecord struct {
	ID            string
	UserID        string
	ProductKind   ProductKind
	ProductRefID  string
	ProductName   string
	Description   string
	GrossAmount   int64
	TaxBase       int64
	TaxAmount     int64
	Currency      string
	Reference     string // idempotency key shared with the gateway; never changes
	Invoice       string
	State         PaymentState
	ResponseCode  string
	ResponseText  string
	PaymentMethod string
	TransactionID string
	Metadata      PaymentMetadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the creation invariants of a record.
func (p *PaymentRecord) Validate() error {
	if p == nil || p.UserID == "" || p.Reference == "" || !p.ProductKind.Valid() || p.ProductRefID == "" {
		return domain.ErrInvalidArgument
	}
	if p.GrossAmount < 0 || p.TaxBase < 0 || p.TaxAmount < 0 {
		return domain.ErrInvalidAmount
	}
	if p.GrossAmount != p.TaxBase+p.TaxAmount {
		return domain.ErrInvalidAmount
	}
	return nil
}

// CheckReplay decides what a rejected conditional transition means for the
// stored record p. A record already in `to` with the same transaction id is a
// replay; anything else is a conflict.
func (p *PaymentRecord) CheckReplay(to PaymentState, transactionID string) error {
	if p.State == to && p.TransactionID == transactionID {
		return nil
	}
	return domain.ErrConflict
}

// TransitionFields carries the gateway result written by a state transition.
type TransitionFields struct {
	ResponseCode  string
	ResponseText  string
	TransactionID string
	PaymentMethod string
	Trace         *TechnicalTrace
}

// PaymentMetadata replaces the free-form extra-data blob. Each section is optional.
type PaymentMetadata struct {
	Customer *CustomerInfo   `json:"customer,omitempty"`
	Billing  *BillingAddress `json:"billing,omitempty"`
	Trace    *TechnicalTrace `json:"trace,omitempty"`
}

type CustomerInfo struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

type BillingAddress struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

type TechnicalTrace struct {
	ClientIP        string     `json:"client_ip,omitempty"`
	UserAgent       string     `json:"user_agent,omitempty"`
	GatewayRef      string     `json:"gateway_ref,omitempty"`
	BankName        string     `json:"bank_name,omitempty"`
	RawResponseCode string     `json:"raw_response_code,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
}
