package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rentfold.io/internal/rental"
)

type createPropertyRequest struct {
	Address   string `json:"address"`
	UnitCount int    `json:"unit_count"`
}

type createLeaseRequest struct {
	PropertyID string    `json:"property_id"`
	TenantID   string    `json:"tenant_id"`
	RentCents  int64     `json:"rent_cents"`
	StartsOn   time.Time `json:"starts_on,omitempty"`
	EndsOn     time.Time `json:"ends_on,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (a *API) handlePropertiesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		props, err := a.rentals.ListProperties(r.Context())
		if err != nil {
			handleRentalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[*rental.Property]{Items: props})
	case http.MethodPost:
		var req createPropertyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		prop, err := a.rentals.CreateProperty(r.Context(), rental.CreatePropertyInput{
			Address:   req.Address,
			UnitCount: req.UnitCount,
		})
		if err != nil {
			handleRentalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, prop)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePropertyResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/properties/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	prop, err := a.rentals.GetProperty(r.Context(), id)
	if err != nil {
		handleRentalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (a *API) handleLeasesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		leases, err := a.rentals.ListLeases(r.Context())
		if err != nil {
			handleRentalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[*rental.Lease]{Items: leases})
	case http.MethodPost:
		var req createLeaseRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		lease, err := a.rentals.CreateLease(r.Context(), rental.CreateLeaseInput{
			PropertyID: req.PropertyID,
			TenantID:   req.TenantID,
			RentCents:  req.RentCents,
			StartsOn:   req.StartsOn,
			EndsOn:     req.EndsOn,
		})
		if err != nil {
			handleRentalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, lease)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePaymentsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	payments, err := a.rentals.ListPayments(r.Context())
	if err != nil {
		handleRentalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[*rental.Payment]{Items: payments})
}

func (a *API) handlePaymentResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/payments/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	payment, err := a.rentals.GetPayment(r.Context(), id)
	if err != nil {
		handleRentalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func handleRentalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rental.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, rental.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, rental.ErrDenied):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, rental.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
