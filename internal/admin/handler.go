package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"girder/internal/models"
)

type Handler struct {
	d Dependencies
	t pageTemplates
}

func (h *Handler) redirect(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusFound)
	}
}

func (h *Handler) render(w http.ResponseWriter, page string, data any) {
	t, ok := h.t[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// ---------- Pages ----------

func (h *Handler) ProjectsList(w http.ResponseWriter, r *http.Request) {
	var rows []models.Project
	q := h.d.DB.Order("updated_at desc").Limit(200)
	if s := strings.TrimSpace(r.URL.Query().Get("q")); s != "" {
		like := "%" + s + "%"
		q = q.Where("name LIKE ? OR hs_id LIKE ? OR procore_id LIKE ?", like, like, like)
	}
	pending := r.URL.Query().Get("pending") == "1"
	if pending {
		q = q.Where("needs_hs_update = ?", true)
	}
	_ = q.Find(&rows).Error
	h.render(w, "projects_list.tmpl", map[string]any{
		"Title":   "Projects",
		"Rows":    rows,
		"Query":   r.URL.Query().Get("q"),
		"Pending": pending,
	})
}

func (h *Handler) ProjectDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	p, err := h.d.PROJECTS.FindByID(r.Context(), uint(id))
	if err != nil || p == nil {
		http.NotFound(w, r)
		return
	}
	files, _ := h.d.ATTACHMENTS.FindByProject(r.Context(), p.ID)

	type fileRow struct {
		Filename  string
		Origin    string
		Type      string
		HSID      string
		ProcoreID string
		Synced    bool
	}
	rows := make([]fileRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, fileRow{
			Filename:  f.Filename,
			Origin:    f.FileOrigin,
			Type:      f.DocumentType,
			HSID:      f.HSID,
			ProcoreID: f.ProcoreID,
			Synced:    f.HSID != "" && f.ProcoreID != "",
		})
	}

	h.render(w, "project_detail.tmpl", map[string]any{
		"Title":    "Project " + p.Name,
		"P":        p,
		"Contract": p.PrimeContract,
		"Company":  p.Company,
		"Contacts": p.Contacts,
		"Files":    rows,
	})
}

func (h *Handler) AccountsPage(w http.ResponseWriter, r *http.Request) {
	var accounts []models.Account
	_ = h.d.DB.Order("id asc").Find(&accounts).Error

	type accountRow struct {
		ID               uint
		Username         string
		Active           bool
		HSPortalID       string
		HSConnected      bool
		HSExpiry         string
		ProcoreConnected bool
		ProcoreExpiry    string
		ProcoreCompany   string
	}
	rows := make([]accountRow, 0, len(accounts))
	for _, a := range accounts {
		row := accountRow{
			ID:             a.ID,
			Username:       a.Username,
			Active:         a.Active,
			HSPortalID:     a.HSPortalID,
			HSConnected:    a.HSRefreshToken != "",
			ProcoreCompany: a.ActiveProcoreCompanyName,
		}
		row.ProcoreConnected = a.ProcoreRefreshToken != ""
		if a.HSTokenExpiry != nil {
			row.HSExpiry = a.HSTokenExpiry.Format(time.RFC3339)
		}
		if a.ProcoreTokenExpiry != nil {
			row.ProcoreExpiry = a.ProcoreTokenExpiry.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	h.render(w, "accounts.tmpl", map[string]any{
		"Title": "Accounts",
		"Rows":  rows,
	})
}

// ---------- API ----------

// APIResync flags a project so the next sweep pushes its Procore-side
// values back to the deal.
func (h *Handler) APIResync(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	p, err := h.d.PROJECTS.FindByID(r.Context(), uint(id))
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if p == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]any{"error": "project not found"})
		return
	}
	p.NeedsHSUpdate = true
	if err := h.d.PROJECTS.Save(r.Context(), p); err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "needs_hs_update": true})
}

func (h *Handler) APIClearFlag(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	p, err := h.d.PROJECTS.FindByID(r.Context(), uint(id))
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if p == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]any{"error": "project not found"})
		return
	}
	if err := h.d.PROJECTS.ClearNeedsHSUpdate(r.Context(), p.ID); err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "needs_hs_update": false})
}
