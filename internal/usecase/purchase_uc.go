// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

// PurchaseCustomer is the buyer contact block of a purchase request.
type PurchaseCustomer struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required,max=120"`
	Phone          string `json:"phone" validate:"omitempty,max=30"`
	DocumentType   string `json:"document_type" validate:"omitempty,max=10"`
	DocumentNumber string `json:"document_number" validate:"omitempty,max=30"`
}

// PurchaseRequest is the purchase-intent input.
type PurchaseRequest struct {
	UserID       string                `json:"user_id" validate:"required,max=64"`
	ProductKind  model.ProductKind     `json:"product_kind" validate:"required,oneof=course tutorial membership"`
	ProductRefID string                `json:"product_ref_id" validate:"required,max=64"`
	Period       model.Period          `json:"period" validate:"required_if=ProductKind membership,omitempty,oneof=monthly annual"`
	Customer     PurchaseCustomer      `json:"customer"`
	Billing      *model.BillingAddress `json:"billing,omitempty"`
	ClientIP     string                `json:"-"`
	UserAgent    string                `json:"-"`
}

// PurchaseResult is handed back to the client, which opens the gateway
// checkout with CheckoutPayload.
type PurchaseResult struct {
	Reference       string                   `json:"reference"`
	CheckoutPayload *adapter.CheckoutPayload `json:"checkout_payload"`
}

type PurchaseUseCase interface {
	Initiate(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
}

var _ PurchaseUseCase = (*purchaseUC)(nil)

type purchaseUC struct {
	catalog   adapter.Catalog
	payments  repository.PaymentRecordStore
	subs      SubscriptionUseCase
	gateway   adapter.PaymentGateway
	tm        repository.TransactionManager
	tax       *TaxCalculator
	refs      *ReferenceGenerator
	validate  *validator.Validate
	currency  string
	opTimeout time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

func NewPurchaseUseCase(
	catalog adapter.Catalog,
	payments repository.PaymentRecordStore,
	subs SubscriptionUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	tax *TaxCalculator,
	refs *ReferenceGenerator,
	currency string,
	opTimeout time.Duration,
	logger *zerolog.Logger,
) *purchaseUC {
	l := logger.With().Str("component", "PurchaseUseCase").Logger()
	return &purchaseUC{
		catalog:   catalog,
		payments:  payments,
		subs:      subs,
		gateway:   gateway,
		tm:        tm,
		tax:       tax,
		refs:      refs,
		validate:  validator.New(),
		currency:  currency,
		opTimeout: opTimeout,
		log:       &l,
		now:       time.Now,
	}
}

func (u *purchaseUC) Initiate(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if err := u.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(err))
	}
	if u.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.opTimeout)
		defer cancel()
	}

	product, err := u.catalog.GetPrice(ctx, req.ProductKind, req.ProductRefID, req.Period)
	if err != nil {
		return nil, err
	}
	split, err := u.tax.Compute(product.Gross)
	if err != nil {
		return nil, err
	}
	reference, err := u.refs.Generate(req.ProductKind, req.ProductRefID, req.UserID)
	if errors.Is(err, domain.ErrInvalidArgument) {
		return nil, fmt.Errorf("%w: user id or product cannot form a reference", domain.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	customer := model.CustomerInfo{
		Email:          strings.TrimSpace(req.Customer.Email),
		Name:           strings.TrimSpace(req.Customer.Name),
		Phone:          req.Customer.Phone,
		DocumentType:   req.Customer.DocumentType,
		DocumentNumber: req.Customer.DocumentNumber,
	}
	now := u.now()
	rec := &model.PaymentRecord{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		ProductKind:  req.ProductKind,
		ProductRefID: req.ProductRefID,
		ProductName:  product.Name,
		Description:  describeProduct(product, req.Period),
		GrossAmount:  split.Total,
		TaxBase:      split.Base,
		TaxAmount:    split.Tax,
		Currency:     u.currency,
		Reference:    reference,
		Invoice:      reference,
		State:        model.PaymentStatePending,
		Metadata: model.PaymentMetadata{
			Customer: &customer,
			Billing:  req.Billing,
			Trace:    &model.TechnicalTrace{ClientIP: req.ClientIP, UserAgent: req.UserAgent},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	// The reference is persisted before anything leaves the process.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Create(ctx, tx, rec); err != nil {
			return err
		}
		if req.ProductKind != model.ProductMembership {
			return nil
		}
		_, err := u.subs.CreatePending(ctx, tx, req.UserID, req.ProductRefID, req.Period, split.Total, reference)
		return err
	})
	if err != nil {
		return nil, domain.WrapRef("PurchaseUseCase.Initiate", reference, err)
	}

	payload, err := u.gateway.BuildCheckout(rec, customer)
	if err != nil {
		return nil, domain.WrapRef("PurchaseUseCase.Initiate", reference, err)
	}

	u.log.Info().
		Str("reference", reference).
		Str("user_id", req.UserID).
		Str("product_kind", string(req.ProductKind)).
		Int64("gross", split.Total).
		Msg("purchase intent created")
	return &PurchaseResult{Reference: reference, CheckoutPayload: payload}, nil
}

func describeProduct(p *model.Product, period model.Period) string {
	if p.Kind == model.ProductMembership && period != "" {
		return fmt.Sprintf("%s (%s)", p.Name, period)
	}
	return p.Name
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}
