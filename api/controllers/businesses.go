package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/api/responses"
	"github.com/atlaspay-io/atlaspay-backend/api/validators"
	"github.com/atlaspay-io/atlaspay-backend/internal/invoices"
	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
	"github.com/atlaspay-io/atlaspay-backend/pkg/types"
)

type businessCreateRequest struct {
	Name            string            `json:"name" validate:"required,min=1,max=200"`
	Email           string            `json:"email" validate:"required,email"`
	PayoutAddresses map[string]string `json:"payout_addresses"`
	BankAccountID   *string           `json:"bank_account_id"`
}

type businessResponse struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	PayoutAddresses map[string]string `json:"payout_addresses,omitempty"`
	BankAccountID   *string           `json:"bank_account_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func businessResponseFromModel(business *models.Business) businessResponse {
	var addresses map[string]string
	if len(business.PayoutAddresses) > 0 {
		addresses = make(map[string]string, len(business.PayoutAddresses))
		for asset, address := range business.PayoutAddresses {
			addresses[asset.String()] = address
		}
	}
	return businessResponse{
		ID:              business.ID,
		Name:            business.Name,
		Email:           business.Email,
		PayoutAddresses: addresses,
		BankAccountID:   business.BankAccountID,
		CreatedAt:       business.CreatedAt,
	}
}

// BusinessCreate registers a merchant with its payout destinations.
func BusinessCreate(repo invoices.BusinessRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business repository unavailable"))
			return
		}

		var payload businessCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book := types.PayoutAddressBook{}
		for raw, address := range payload.PayoutAddresses {
			asset := enums.Asset(strings.ToUpper(strings.TrimSpace(raw)))
			if !asset.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown payout asset "+raw))
				return
			}
			book[asset] = strings.TrimSpace(address)
		}

		business := &models.Business{
			Name:            validators.SanitizeString(payload.Name, 200),
			Email:           strings.TrimSpace(payload.Email),
			PayoutAddresses: book,
			BankAccountID:   payload.BankAccountID,
		}
		if err := repo.Create(r.Context(), business); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, businessResponseFromModel(business))
	}
}

// BusinessGet returns a single merchant.
func BusinessGet(repo invoices.BusinessRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "business repository unavailable"))
			return
		}

		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		business, err := repo.FindByID(r.Context(), businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if business == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "business not found"))
			return
		}

		responses.WriteSuccess(w, businessResponseFromModel(business))
	}
}
