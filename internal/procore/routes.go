package procore

import (
	"github.com/gorilla/mux"

	"girder/config"
	"girder/internal/creds"
	"girder/internal/repo"
)

type Dependencies struct {
	CFG      *config.Config
	CREDS    *creds.Manager
	REC      *Reconciler
	CLIENT   *Client
	ACCOUNTS *repo.AccountStore
	PROJECTS *repo.ProjectStore
}

func Attach(r *mux.Router, d Dependencies) {
	h := &Handler{d: d}
	sub := r.PathPrefix("/procore").Subrouter()

	sub.HandleFunc("/connect", h.Connect).Methods("GET")
	sub.HandleFunc("/redirect", h.Redirect).Methods("GET")
	sub.HandleFunc("/webhook", h.Webhook).Methods("POST")
	sub.HandleFunc("/projects", h.ProjectsList).Methods("GET")
	sub.HandleFunc("/projects/webhook/install", h.InstallWebhook).Methods("POST")
	sub.HandleFunc("/projects/{procore_id}", h.ProjectDetail).Methods("GET")
	sub.HandleFunc("/projects/{procore_id}/files/pull", h.PullProjectFiles).Methods("POST")
	sub.HandleFunc("/projects/{procore_id}/files/push", h.PushProjectFiles).Methods("POST")
	sub.HandleFunc("/search_companies", h.SearchCompanies).Methods("GET")
}
