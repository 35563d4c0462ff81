package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"girder/internal/creds"
	"girder/internal/logs"
	"girder/internal/models"
)

type Handler struct {
	d Dependencies
}

// Connect starts the OAuth install flow. A fresh installation gets its
// account row created here.
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
	http.Redirect(w, r, h.d.CREDS.InstallURL(creds.SystemHubSpot, state), http.StatusFound)
}

// Redirect is the OAuth callback: exchange the code, then identify the
// portal behind the new token.
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

	if err := h.d.CREDS.Authorize(r.Context(), account, creds.SystemHubSpot, code); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "authorization failed", err.Error(), nil)
		return
	}

	info, err := h.d.REC.client.GetAccountInfo(r.Context(), account.ID)
	if err != nil {
		logs.Logger.Warnf("portal lookup failed for account %d: %v", account.ID, err)
	} else {
		account.HSPortalID = strconv.FormatInt(info.PortalID, 10)
		if err := h.d.ACCOUNTS.Save(r.Context(), account); err != nil {
			models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
			return
		}
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "connected",
		"portal_id": account.HSPortalID,
	})
}

func (h *Handler) accountFromState(r *http.Request) (*models.Account, error) {
	state := r.URL.Query().Get("state")
	if state != "" {
		id, err := strconv.ParseUint(state, 10, 64)
		if err == nil {
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
		return nil, fmt.Errorf("no installation account")
	}
	return account, nil
}

// Webhook acknowledges the batch immediately and hands it to the
// background worker. The portal retries on anything but a fast 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var events []WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "invalid webhook body", nil)
		return
	}
	h.d.DISPATCHER.Enqueue(events)
	w.WriteHeader(http.StatusOK)
}

// DocumentWebhook fires when a document custom object is created in the
// portal. The associated deal's attachment set is re-read in the
// background.
func (h *Handler) DocumentWebhook(w http.ResponseWriter, r *http.Request) {
	var events []WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "invalid webhook body", nil)
		return
	}
	w.WriteHeader(http.StatusOK)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		for _, ev := range events {
			if ev.ObjectID == 0 {
				continue
			}
			if err := h.processDocumentEvent(ctx, ev); err != nil {
				logs.Logger.Errorf("document webhook event %d: %v", ev.EventID, err)
			}
		}
	}()
}

func (h *Handler) processDocumentEvent(ctx context.Context, ev WebhookEvent) error {
	account, err := h.d.DISPATCHER.resolveAccount(ctx, ev.PortalID)
	if err != nil || account == nil {
		return fmt.Errorf("no account for portal %d: %v", ev.PortalID, err)
	}
	objectID := strconv.FormatInt(ev.ObjectID, 10)
	deals, err := h.d.REC.client.GetAssociations(ctx, account.ID,
		h.d.CFG.HubSpot.DocumentObjectID, objectID, "deals")
	if err != nil {
		return err
	}
	for _, ref := range deals {
		project, err := h.d.PROJECTS.FindByHSID(ctx, ref.ID)
		if err != nil || project == nil {
			continue
		}
		if err := h.d.REC.ProcessProjectDocuments(ctx, account, project); err != nil {
			logs.Logger.Errorf("documents for deal %s: %v", ref.ID, err)
		}
	}
	return nil
}

type syncContactRequest struct {
	ProcoreID string `json:"procore_id"`
}

// SyncContact pushes one mirrored contact back into the portal.
func (h *Handler) SyncContact(w http.ResponseWriter, r *http.Request) {
	var req syncContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProcoreID == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "procore_id required", nil)
		return
	}
	ct, err := h.d.CONTACTS.FindByProcoreID(r.Context(), req.ProcoreID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}
	if ct == nil {
		models.WriteProblem(w, http.StatusNotFound, "not found", "unknown contact", nil)
		return
	}
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil || account == nil {
		models.WriteProblem(w, http.StatusConflict, "not connected", "no installation account", nil)
		return
	}
	if err := h.d.REC.PushContactToHubSpot(r.Context(), account, ct); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "push failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"hs_id": ct.HSID})
}

type syncCompanyRequest struct {
	ProcoreID string `json:"procore_id"`
}

// SyncCompany pushes one mirrored company back into the portal.
func (h *Handler) SyncCompany(w http.ResponseWriter, r *http.Request) {
	var req syncCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProcoreID == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "procore_id required", nil)
		return
	}
	co, err := h.d.COMPANIES.FindByProcoreID(r.Context(), req.ProcoreID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}
	if co == nil {
		models.WriteProblem(w, http.StatusNotFound, "not found", "unknown company", nil)
		return
	}
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil || account == nil {
		models.WriteProblem(w, http.StatusConflict, "not connected", "no installation account", nil)
		return
	}
	if err := h.d.REC.PushCompanyToHubSpot(r.Context(), account, co); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "push failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"hs_id": co.HSID})
}

type syncAttachmentsRequest struct {
	DealID string `json:"deal_id"`
}

// SyncAttachments publishes all pending construction-side documents of
// one deal into the portal.
func (h *Handler) SyncAttachments(w http.ResponseWriter, r *http.Request) {
	var req syncAttachmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DealID == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "deal_id required", nil)
		return
	}
	project, err := h.d.PROJECTS.FindByHSID(r.Context(), req.DealID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}
	if project == nil {
		models.WriteProblem(w, http.StatusNotFound, "not found", "unknown deal", nil)
		return
	}
	account, err := h.d.ACCOUNTS.First(r.Context())
	if err != nil || account == nil {
		models.WriteProblem(w, http.StatusConflict, "not connected", "no installation account", nil)
		return
	}
	if err := h.d.REC.SyncAttachmentsFromProcore(r.Context(), account, project); err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "sync failed", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CRMCard renders the deal sidebar card: the mirrored project state at
// a glance. The portal calls this with the deal id in the query.
func (h *Handler) CRMCard(w http.ResponseWriter, r *http.Request) {
	dealID := r.URL.Query().Get("associatedObjectId")
	if dealID == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad request", "associatedObjectId required", nil)
		return
	}
	project, err := h.d.PROJECTS.FindByHSID(r.Context(), dealID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "storage error", err.Error(), nil)
		return
	}

	type cardProps struct {
		ObjectID  string `json:"objectId"`
		Title     string `json:"title"`
		Stage     string `json:"procore_stage,omitempty"`
		ProjectID string `json:"procore_project_id,omitempty"`
		Total     string `json:"procore_total_value,omitempty"`
	}
	var results []cardProps
	if project != nil {
		card := cardProps{
			ObjectID:  project.HSID,
			Title:     project.Name,
			Stage:     project.ProcoreStage,
			ProjectID: project.ProcoreID,
		}
		if project.ProcoreTotalValue != 0 {
			card.Total = strconv.FormatFloat(project.ProcoreTotalValue, 'f', 2, 64)
		}
		results = append(results, card)
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}
