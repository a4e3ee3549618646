package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/adapters/payment"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/logging"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/metrics"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

const maxBody = 64 << 10

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type paymentView struct {
	Reference     string    `json:"reference"`
	State         string    `json:"state"`
	ProductKind   string    `json:"product_kind"`
	ProductRefID  string    `json:"product_ref_id"`
	ProductName   string    `json:"product_name"`
	GrossAmount   int64     `json:"gross_amount"`
	TaxBase       int64     `json:"tax_base"`
	TaxAmount     int64     `json:"tax_amount"`
	Currency      string    `json:"currency"`
	ResponseText  string    `json:"response_text,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toPaymentView(p *model.PaymentRecord) paymentView {
	return paymentView{
		Reference:     p.Reference,
		State:         string(p.State),
		ProductKind:   string(p.ProductKind),
		ProductRefID:  p.ProductRefID,
		ProductName:   p.ProductName,
		GrossAmount:   p.GrossAmount,
		TaxBase:       p.TaxBase,
		TaxAmount:     p.TaxAmount,
		Currency:      p.Currency,
		ResponseText:  p.ResponseText,
		PaymentMethod: p.PaymentMethod,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type subscriptionView struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	PlanID           string     `json:"plan_id"`
	Period           string     `json:"period"`
	State            string     `json:"state"`
	StartDate        time.Time  `json:"start_date"`
	ExpirationDate   time.Time  `json:"expiration_date"`
	CancellationDate *time.Time `json:"cancellation_date,omitempty"`
	AmountPaid       int64      `json:"amount_paid"`
	Reference        string     `json:"reference"`
	AutoRenew        bool       `json:"auto_renew"`
}

func toSubscriptionView(s *model.SubscriptionRecord) subscriptionView {
	return subscriptionView{
		ID:               s.ID,
		UserID:           s.UserID,
		PlanID:           s.PlanID,
		Period:           string(s.Period),
		State:            string(s.State),
		StartDate:        s.StartDate,
		ExpirationDate:   s.ExpirationDate,
		CancellationDate: s.CancellationDate,
		AmountPaid:       s.AmountPaid,
		Reference:        s.Reference,
		AutoRenew:        s.AutoRenew,
	}
}

type planView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Level        int      `json:"level"`
	MonthlyPrice int64    `json:"monthly_price"`
	AnnualPrice  int64    `json:"annual_price"`
	Permissions  []string `json:"permissions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	out := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": out})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.ListAll(r.Context(), repository.NoTX)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		if !p.Active {
			continue
		}
		perms := make([]string, len(p.Permissions))
		for i, x := range p.Permissions {
			perms[i] = string(x)
		}
		views = append(views, planView{
			ID: p.ID, Name: p.Name, Level: p.Level,
			MonthlyPrice: p.MonthlyPrice, AnnualPrice: p.AnnualPrice, Permissions: perms,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req usecase.PurchaseRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Kind: "validation"})
		return
	}
	if !s.allowed(r, req.UserID) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}
	req.ClientIP = clientIP(r)
	req.UserAgent = r.UserAgent()

	res, err := s.purchase.Initiate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncPayment(string(model.PaymentStatePending), string(req.ProductKind))
	l := logging.With(logging.WithReference(r.Context(), res.Reference), s.log)
	l.Info().
		Str("product_kind", string(req.ProductKind)).
		Str("email", logging.Redact(req.Customer.Email, s.dev)).
		Msg("purchase initiated")
	writeJSON(w, http.StatusCreated, res)
}

// handleConfirmation is the gateway webhook. The gateway may post a form,
// post JSON or send everything as query parameters.
func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	raw, err := readPayload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start := time.Now()
	out, err := s.confirm.Confirm(r.Context(), "", raw)
	observeConfirmation(out, err, time.Since(start))
	s.writeOutcome(w, r, out, err)
}

// handleResponse backs the page the buyer lands on after checkout. The
// gateway reference is looked up server side so the browser cannot forge it.
func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	gatewayRef := r.URL.Query().Get("ref_payco")
	if gatewayRef == "" {
		gatewayRef = r.URL.Query().Get("x_ref_payco")
	}
	if gatewayRef == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ref_payco is required", Kind: "validation"})
		return
	}
	start := time.Now()
	out, err := s.confirm.ConfirmByGatewayRef(r.Context(), gatewayRef)
	observeConfirmation(out, err, time.Since(start))
	s.writeOutcome(w, r, out, err)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	rec, err := s.confirm.GetPayment(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.allowed(r, rec.UserID) {
		// same answer as a missing record so references cannot be probed
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(rec))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !s.allowed(r, userID) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}
	sub, err := s.subs.GetActive(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionView(sub))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !s.allowed(r, userID) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}
	sub, err := s.subs.Cancel(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true, "subscription": toSubscriptionView(sub)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}
	counts, err := s.stats.SubscriptionsByState(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	week, month, year, err := s.stats.Revenue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byState := make(map[string]int, len(counts))
	for k, v := range counts {
		byState[string(k)] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": byState,
		"revenue":       map[string]int64{"week": week, "month": month, "year": year},
	})
}

// writeOutcome answers 202 with the outcome when the payment landed but the
// membership did not; the gateway will redeliver and the redelivery heals it.
func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out *usecase.ConfirmationOutcome, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrPartialActivation) && out != nil {
			writeJSON(w, http.StatusAccepted, out)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if status >= 500 {
		l.Error().Err(err).Str("kind", domain.Kind(err)).Msg("request failed")
	} else {
		l.Debug().Err(err).Str("kind", domain.Kind(err)).Msg("request rejected")
	}
	msg := http.StatusText(status)
	if status < 500 {
		msg = rootMessage(err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: domain.Kind(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPartialActivation):
		return http.StatusAccepted
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrNoActiveSubscription):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, domain.ErrAlreadyAtOrAboveTier):
		return http.StatusConflict
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// rootMessage drops the operation prefix of a ReferenceError.
func rootMessage(err error) string {
	var re *domain.ReferenceError
	if errors.As(err, &re) {
		return re.Err.Error()
	}
	return err.Error()
}

func observeConfirmation(out *usecase.ConfirmationOutcome, err error, d time.Duration) {
	outcome, replayed := "error", false
	if out != nil {
		outcome, replayed = string(out.Status), out.Replayed
	}
	metrics.ObserveConfirmation(outcome, domain.Kind(err), replayed, d.Seconds())

	switch {
	case errors.Is(err, domain.ErrPartialActivation):
		metrics.IncPartialActivation()
	case errors.Is(err, domain.ErrConflict):
		metrics.IncDataIntegrityAlarm("confirmation")
	}
	if out == nil {
		return
	}
	if out.PaymentApplied && out.Payment != nil {
		metrics.IncPayment(string(out.Payment.State), string(out.Payment.ProductKind))
		if out.Payment.State == model.PaymentStateSuccess {
			metrics.AddPaymentRevenue(out.Payment.Currency, out.Payment.GrossAmount)
		}
	}
	if out.Subscription != nil && out.Status == usecase.StatusConfirmed && !out.Replayed {
		metrics.IncSubscriptionsActivated("webhook", 1)
	}
}

func readPayload(w http.ResponseWriter, r *http.Request) (adapter.RawPayload, error) {
	raw := adapter.RawPayload{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	if r.Method != http.MethodPost {
		return raw, nil
	}

	body := http.MaxBytesReader(w, r.Body, maxBody)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var m map[string]any
		dec := json.NewDecoder(body)
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return nil, domain.ErrMalformedPayload
		}
		for k, v := range payment.FlattenJSON(m) {
			raw[k] = v
		}
		return raw, nil
	}
	r.Body = body
	if err := r.ParseForm(); err != nil {
		return nil, domain.ErrMalformedPayload
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			raw[k] = v[0]
		}
	}
	return raw, nil
}

// clientIP prefers the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
