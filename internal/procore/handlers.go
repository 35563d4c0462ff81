package procore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"girder/internal/creds"
	"girder/internal/logs"
	"girder/internal/models"
)

type Handler struct {
	d Dependencies
}

// Connect starts the OAuth flow against the Procore login service.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}
	if account == nil {
		account = &models.Account{Username: "default", Active: true}
		if err := h.d.ACCOUNTS.Create(r.Context(), account); err != nil {
			models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
			return
		}
	}
	state := strconv.FormatUint(uint64(account.ID), 10)
	http.Redirect(w, r, h.d.CREDS.InstallURL(creds.SystemProcore, state), http.StatusFound)
}

// Redirect finishes the OAuth flow, then records the first company the
// token can act for as the active company.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "missing code", nil)
		return
	}
	account, err := h.accountFromState(r)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", err.Error(), nil)
		return
	}

	if err := h.d.CREDS.Authorize(r.Context(), account, creds.SystemProcore, code); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "authorization failed", err.Error(), nil)
		return
	}

	companies, err := h.d.CLIENT.ListCompanies(r.Context(), account)
	if err != nil {
		logs.Logger.Warnf("company listing failed for account %d: %v", account.ID, err)
	} else if len(companies) > 0 {
		account.ActiveProcoreCompanyID = strconv.FormatInt(companies[0].ID, 10)
		account.ActiveProcoreCompanyName = companies[0].Name
		if err := h.d.ACCOUNTS.Save(r.Context(), account); err != nil {
			models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
			return
		}
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{
		"status":       "connected",
		"company_id":   account.ActiveProcoreCompanyID,
		"company_name": account.ActiveProcoreCompanyName,
	})
}

func (h *Handler) accountFromState(r *http.Request) (*models.Account, error) {
	if state := r.URL.Query().Get("state"); state != "" {
		if id, err := strconv.ParseUint(state, 10, 64); err == nil {
			account, err := h.d.ACCOUNTS.FindByID(r.Context(), uint(id))
			if err != nil {
				return nil, err
			}
			if account != nil {
				return account, nil
			}
		}
	}
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("no installation account")
	}
	return account, nil
}

// Webhook acknowledges immediately and processes in the background; the
// handler has its own settle delay before it reads anything back.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var body WebhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "invalid webhook body", nil)
		return
	}
	w.WriteHeader(http.StatusOK)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		account, err := h.d.ACCOUNTS.First(ctx)
		if err != nil || account == nil {
			logs.Logger.Errorf("procore webhook: no installation account: %v", err)
			return
		}
		if err := h.d.REC.HandleWebhook(ctx, account, body); err != nil {
			logs.Logger.Errorf("procore webhook (%s %d): %v", body.ResourceName, body.ResourceID, err)
		}
	}()
}

// ProjectsList returns the canonical projects, the local view of both
// systems.
func (h *Handler) ProjectsList(w http.ResponseWriter, r *http.Request) {
	needsUpdate := r.URL.Query().Get("needs_hs_update") == "true"
	var (
		projects []models.Project
		err      error
	)
	if needsUpdate {
		projects, err = h.d.PROJECTS.FindNeedingHSUpdate(r.Context())
	} else {
		projects, err = h.d.PROJECTS.All(r.Context())
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, projects)
}

// ProjectDetail returns one canonical project by its Procore id.
func (h *Handler) ProjectDetail(w http.ResponseWriter, r *http.Request) {
	procoreID := mux.Vars(r)["procore_id"]
	project, err := h.d.PROJECTS.FindByProcoreID(r.Context(), procoreID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}
	if project == nil {
		models.WriteProblem(w, http.StatusNotFound, "not found", "unknown project", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, project)
}

// InstallWebhook registers this service's webhook with Procore.
func (h *Handler) InstallWebhook(w http.ResponseWriter, r *http.Request) {
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil || account == nil {
		models.WriteProblem(w, http.StatusConflict, "not connected", "no installation account", nil)
		return
	}
	if err := h.d.REC.RegisterProjectUpdateWebhook(r.Context(), account); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "registration failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// PullProjectFiles stages remote documents locally and publishes them
// to the CRM side on the next attachment sync.
func (h *Handler) PullProjectFiles(w http.ResponseWriter, r *http.Request) {
	project, account, ok := h.projectAndAccount(w, r)
	if !ok {
		return
	}
	if err := h.d.REC.GetProjectFiles(r.Context(), account, project); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "pull failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PushProjectFiles uploads staged CRM-origin files into the project
// folder.
func (h *Handler) PushProjectFiles(w http.ResponseWriter, r *http.Request) {
	project, account, ok := h.projectAndAccount(w, r)
	if !ok {
		return
	}
	if err := h.d.REC.ProcessProjectFiles(r.Context(), account, project); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "push failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) projectAndAccount(w http.ResponseWriter, r *http.Request) (*models.Project, *models.Account, bool) {
	procoreID := mux.Vars(r)["procore_id"]
	project, err := h.d.PROJECTS.FindByProcoreID(r.Context(), procoreID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return nil, nil, false
	}
	if project == nil {
		models.WriteProblem(w, http.StatusNotFound, "not found", "unknown project", nil)
		return nil, nil, false
	}
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil || account == nil {
		models.WriteProblem(w, http.StatusConflict, "not connected", "no installation account", nil)
		return nil, nil, false
	}
	return project, account, true
}

// SearchCompanies proxies the vendor directory search.
func (h *Handler) SearchCompanies(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "name required", nil)
		return
	}
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil || account == nil {
		models.WriteProblem(w, http.StatusConflict, "not connected", "no installation account", nil)
		return
	}
	hits, err := h.d.CLIENT.SearchVendors(r.Context(), account, name)
	if err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "search failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, hits)
}
