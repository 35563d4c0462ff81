package hubspot

import (
	"net/http"

	"github.com/gorilla/mux"

	"girder/config"
	"girder/internal/creds"
	"girder/internal/repo"
)

type Dependencies struct {
	CFG        *config.Config
	CREDS      *creds.Manager
	REC        *Reconciler
	DISPATCHER *Dispatcher
	ACCOUNTS   *repo.AccountStore
	PROJECTS   *repo.ProjectStore
	COMPANIES  *repo.CompanyStore
	CONTACTS   *repo.ContactStore
}

func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d}
	sub := r.PathPrefix("/hubspot").Subrouter()

	sub.HandleFunc("/connect", h.Connect).Methods("GET")
	sub.HandleFunc("/redirect", h.Redirect).Methods("GET")
	// Deliveries are signed with the app client secret; validation is
	// opt-in so local tunnels can post unsigned test payloads.
	signed := func(h http.HandlerFunc) http.Handler {
		if !d.CFG.HubSpot.ValidateSignatures {
			return h
		}
		return SignatureValidator(d.CFG.HubSpot.ClientSecret, d.CFG.HubSpot.SignatureMaxSkew)(h)
	}

	sub.Handle("/webhook", signed(h.Webhook)).Methods("POST")
	sub.Handle("/document/webhook", signed(h.DocumentWebhook)).Methods("POST")
	sub.HandleFunc("/procore_sync_contact", h.SyncContact).Methods("POST")
	sub.HandleFunc("/procore_sync_company", h.SyncCompany).Methods("POST")
	sub.HandleFunc("/attachments/sync", h.SyncAttachments).Methods("POST")
	sub.HandleFunc("/crmcard", h.CRMCard).Methods("GET")
}
