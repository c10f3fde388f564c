package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/api/responses"
	"github.com/atlaspay-io/atlaspay-backend/api/validators"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains"
	"github.com/atlaspay-io/atlaspay-backend/internal/chains/simnet"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/internal/pipeline"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/pagination"
)

// pathUUID reads and parses a UUID route parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is required", name))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

type invoiceCreateRequest struct {
	BusinessID       string   `json:"business_id" validate:"required,uuid4"`
	Number           string   `json:"number" validate:"required,min=1,max=100"`
	TotalUSDCents    int64    `json:"total_usd_cents" validate:"required,gt=0"`
	SettlementTarget string   `json:"settlement_target" validate:"required"`
	ConversionMode   string   `json:"conversion_mode"`
	PaymentOptions   []string `json:"payment_options" validate:"required,min=1,dive,required"`
}

func (req invoiceCreateRequest) toInput() (invoices.CreateInput, error) {
	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		return invoices.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id")
	}
	options := make([]enums.Chain, 0, len(req.PaymentOptions))
	for _, raw := range req.PaymentOptions {
		chain, err := enums.ParseChain(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return invoices.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeUnsupportedChain, err, "invalid payment option")
		}
		options = append(options, chain)
	}
	return invoices.CreateInput{
		BusinessID:       businessID,
		Number:           validators.SanitizeString(req.Number, 100),
		TotalUSDCents:    req.TotalUSDCents,
		SettlementTarget: enums.Asset(strings.ToUpper(strings.TrimSpace(req.SettlementTarget))),
		ConversionMode:   enums.ConversionMode(strings.ToLower(strings.TrimSpace(req.ConversionMode))),
		PaymentOptions:   options,
	}, nil
}

type depositAddressResponse struct {
	Address          string  `json:"address"`
	PaymentReference *string `json:"payment_reference,omitempty"`
}

type lockedQuoteResponse struct {
	Rates            map[string]string `json:"rates"`
	LockedAt         time.Time         `json:"locked_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	SecondsRemaining int64             `json:"seconds_remaining"`
}

type invoiceResponse struct {
	ID               uuid.UUID                         `json:"id"`
	BusinessID       uuid.UUID                         `json:"business_id"`
	Number           string                            `json:"number"`
	TotalUSDCents    int64                             `json:"total_usd_cents"`
	SettlementTarget enums.Asset                       `json:"settlement_target"`
	ConversionMode   enums.ConversionMode              `json:"conversion_mode"`
	Status           enums.InvoiceStatus               `json:"status"`
	PaymentOptions   []enums.Chain                     `json:"payment_options"`
	DepositAddresses map[string]depositAddressResponse `json:"deposit_addresses,omitempty"`
	Quote            *lockedQuoteResponse              `json:"quote,omitempty"`
	CreatedAt        time.Time                         `json:"created_at"`
}

func invoiceResponseFromModel(invoice *models.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:               invoice.ID,
		BusinessID:       invoice.BusinessID,
		Number:           invoice.Number,
		TotalUSDCents:    invoice.TotalUSDCents,
		SettlementTarget: invoice.SettlementTarget,
		ConversionMode:   invoice.ConversionMode,
		Status:           invoice.Status,
		PaymentOptions:   []enums.Chain(invoice.PaymentOptions),
		CreatedAt:        invoice.CreatedAt,
	}
	if len(invoice.DepositAddresses) > 0 {
		resp.DepositAddresses = make(map[string]depositAddressResponse, len(invoice.DepositAddresses))
		for chain, deposit := range invoice.DepositAddresses {
			resp.DepositAddresses[chain.String()] = depositAddressResponse{
				Address:          deposit.Address,
				PaymentReference: deposit.PaymentReference,
			}
		}
	}
	if !invoice.LockedQuote.IsZero() {
		resp.Quote = &lockedQuoteResponse{
			Rates:            invoice.LockedQuote.Rates,
			LockedAt:         invoice.LockedQuote.LockedAt,
			ExpiresAt:        invoice.LockedQuote.ExpiresAt,
			SecondsRemaining: invoice.LockedQuote.SecondsRemaining(time.Now().UTC()),
		}
	}
	return resp
}

// InvoiceCreate drafts an invoice for a registered business.
func InvoiceCreate(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		var req invoiceCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoiceResponseFromModel(invoice))
	}
}

// InvoiceIssue provisions deposit addresses, locks the rate quote, and sends
// the invoice to the payer.
func InvoiceIssue(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Issue(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoiceResponseFromModel(invoice))
	}
}

// InvoiceGet returns the payer-facing view of one invoice.
func InvoiceGet(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoiceResponseFromModel(invoice))
	}
}

type invoiceListResponse struct {
	Invoices   []invoiceResponse `json:"invoices"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// InvoiceList pages a business's invoices newest first. The cursor is opaque
// to callers; an empty next_cursor means the last page was reached.
func InvoiceList(repo invoices.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository unavailable"))
			return
		}

		rawBusinessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
		if rawBusinessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "business_id is required"))
			return
		}
		businessID, err := uuid.Parse(rawBusinessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business_id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		rows, err := repo.ListByBusiness(r.Context(), businessID, cursor, pagination.LimitWithBuffer(limit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invoices"))
			return
		}

		resp := invoiceListResponse{Invoices: make([]invoiceResponse, 0, len(rows))}
		if len(rows) > limit {
			last := rows[limit-1]
			resp.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			rows = rows[:limit]
		}
		for i := range rows {
			resp.Invoices = append(resp.Invoices, invoiceResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// InvoiceSummary returns the ordered pipeline step projection.
func InvoiceSummary(svc pipeline.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type checkPaymentResponse struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Detected  bool      `json:"detected"`
}

// InvoiceCheckPayment polls the invoice's deposit addresses and, on a match,
// drives the settlement pipeline to completion before responding.
func InvoiceCheckPayment(svc pipeline.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detected, err := svc.CheckAndProcessPayment(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkPaymentResponse{InvoiceID: invoiceID, Detected: detected})
	}
}

type simulatePaymentRequest struct {
	Chain         string `json:"chain" validate:"required"`
	AmountUSDCent int64  `json:"amount_usd_cents" validate:"gte=0"`
	TxRef         string `json:"tx_ref"`
	Confirmations int    `json:"confirmations" validate:"gte=0"`
}

type simulatePaymentResponse struct {
	InvoiceID    uuid.UUID   `json:"invoice_id"`
	Chain        enums.Chain `json:"chain"`
	Address      string      `json:"address"`
	TxRef        string      `json:"tx_ref"`
	AmountNative string      `json:"amount_native"`
}

const defaultSimulatedConfirmations = 6

// InvoiceSimulatePayment registers an inbound transfer on the simulated
// network for one of the invoice's deposit addresses. The native amount is
// derived from the locked quote so the default payment settles exactly.
func InvoiceSimulatePayment(svc invoices.Service, registry *chains.Registry, store *simnet.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || registry == nil || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "simulation unavailable"))
			return
		}

		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req simulatePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		chain, err := enums.ParseChain(strings.ToLower(strings.TrimSpace(req.Chain)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnsupportedChain, err, "invalid chain"))
			return
		}

		invoice, err := svc.Get(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !invoice.Status.IsAwaitingPayment() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("invoice is not awaiting payment (status %s)", invoice.Status)))
			return
		}

		deposit, ok := invoice.DepositAddresses[chain]
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invoice has no deposit address for chain %s", chain)))
			return
		}

		adapter, err := registry.Adapter(chain)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rate, err := invoice.LockedQuote.Rate(adapter.NativeAsset())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "invoice quote is not locked for this chain"))
			return
		}

		usdCents := req.AmountUSDCent
		if usdCents == 0 {
			usdCents = invoice.TotalUSDCents
		}
		native, err := adapter.USDToNative(usdCents, rate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive native amount"))
			return
		}

		txRef := strings.TrimSpace(req.TxRef)
		if txRef == "" {
			txRef = "sim-" + uuid.NewString()
		}
		confirmations := req.Confirmations
		if confirmations == 0 {
			confirmations = defaultSimulatedConfirmations
		}

		payment := simnet.Payment{
			TxRef:         txRef,
			Amount:        native,
			Confirmations: confirmations,
			ReceivedAt:    time.Now().UTC(),
		}
		if err := store.RegisterPayment(deposit.TrackingHandle, payment); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "register simulated payment"))
			return
		}

		if logg != nil {
			logCtx := logg.WithChain(logg.WithInvoiceID(r.Context(), invoiceID.String()), chain.String())
			logg.Info(logCtx, "simulated payment registered")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, simulatePaymentResponse{
			InvoiceID:    invoiceID,
			Chain:        chain,
			Address:      deposit.Address,
			TxRef:        txRef,
			AmountNative: adapter.FormatAmount(native),
		})
	}
}
