package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/obs"
	"rentfold.io/internal/rental"
	"rentfold.io/internal/webhook"
)

// ReadyProbe checks storage reachability for /readyz. Both handles are
// pinged when configured; in-memory runs carry none.
type ReadyProbe struct {
	DB         *sql.DB
	ElevatedDB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.ElevatedDB != nil {
		return rp.ElevatedDB.PingContext(ctx)
	}
	return nil
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	identity   *identity.Service
	rentals    *rental.Service
	signer     *identity.Signer
	webhooks   *webhook.Handler
	readyProbe ReadyProbe
	version    string
}

// New wires all routes. The webhook endpoint authenticates with the
// provider signature, not a bearer credential, so it sits on the public
// list and does its own verification.
func New(idsvc *identity.Service, rentals *rental.Service, signer *identity.Signer, webhooks *webhook.Handler, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		identity:   idsvc,
		rentals:    rentals,
		signer:     signer,
		webhooks:   webhooks,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)

	a.mux.HandleFunc("/v1/properties", a.handlePropertiesCollection)
	a.mux.HandleFunc("/v1/properties/", a.handlePropertyResource)
	a.mux.HandleFunc("/v1/leases", a.handleLeasesCollection)
	a.mux.HandleFunc("/v1/payments", a.handlePaymentsCollection)
	a.mux.HandleFunc("/v1/payments/", a.handlePaymentResource)

	if webhooks != nil {
		a.mux.Handle("/webhooks/billing", webhooks)
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
