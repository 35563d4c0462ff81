package procore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"girder/internal/logs"
	"girder/internal/models"
)

const projectFolderName = "HubSpot Documents"

// EnsureProjectFolder returns the id of the project's upload folder,
// creating it on first use. The id is cached on the project row.
func (r *Reconciler) EnsureProjectFolder(ctx context.Context, account *models.Account, p *models.Project) (string, error) {
	if p.ProcoreFolderID != "" {
		return p.ProcoreFolderID, nil
	}
	if err := r.checkWrites(p); err != nil {
		return "", err
	}
	id, err := r.client.CreateFolder(ctx, account, p.ProcoreID, projectFolderName)
	if err != nil {
		return "", fmt.Errorf("create folder for project %d: %w", p.ID, err)
	}
	p.ProcoreFolderID = strconv.FormatInt(id, 10)
	if err := r.projects.Save(ctx, p); err != nil {
		return "", err
	}
	return p.ProcoreFolderID, nil
}

// CreateProjectFile uploads one staged attachment into the project
// folder and records the remote id.
func (r *Reconciler) CreateProjectFile(ctx context.Context, account *models.Account, p *models.Project, at *models.Attachment) error {
	if err := r.checkWrites(p); err != nil {
		return err
	}
	folderID, err := r.EnsureProjectFolder(ctx, account, p)
	if err != nil {
		return err
	}

	data, err := r.storage.Read(at.LocalPath)
	if err != nil {
		return fmt.Errorf("read staged file %s: %w", at.LocalPath, err)
	}
	name := at.Filename
	if at.Extension != "" && !strings.HasSuffix(name, "."+at.Extension) {
		name = name + "." + at.Extension
	}

	id, err := r.client.UploadFile(ctx, account, p.ProcoreID, folderID, name, data)
	if err != nil {
		return err
	}
	at.ProcoreID = strconv.FormatInt(id, 10)
	return r.attachments.Save(ctx, at)
}

// ProcessProjectFiles pushes every staged attachment that has not
// reached Procore yet.
func (r *Reconciler) ProcessProjectFiles(ctx context.Context, account *models.Account, p *models.Project) error {
	pending, err := r.attachments.FindMissingProcoreID(ctx, p.ID)
	if err != nil {
		return err
	}
	for _, at := range pending {
		if at.FileOrigin != models.FileOriginHubSpot {
			continue
		}
		if err := r.CreateProjectFile(ctx, account, p, at); err != nil {
			logs.Logger.Errorf("file push %s for project %d: %v", at.Filename, p.ID, err)
		}
	}
	return nil
}

// GetProjectFiles pulls the remote document listing and stages every
// unseen file locally.
func (r *Reconciler) GetProjectFiles(ctx context.Context, account *models.Account, p *models.Project) error {
	docs, err := r.client.ListProjectDocuments(ctx, account, p.ProcoreID)
	if err != nil {
		return err
	}
	return r.ProcessRemoteProjectFiles(ctx, account, p, docs)
}

// ProcessRemoteProjectFiles records and downloads procore-origin files.
// Files this integration pushed up (already known by procore id) are
// skipped.
func (r *Reconciler) ProcessRemoteProjectFiles(ctx context.Context, account *models.Account, p *models.Project, docs []remoteDocument) error {
	for _, d := range docs {
		if d.DocumentType != "file" {
			continue
		}
		procoreID := strconv.FormatInt(d.ID, 10)
		existing, err := r.attachments.FindByProcoreID(ctx, p.ID, procoreID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		at := &models.Attachment{
			ProcoreID:    procoreID,
			Filename:     d.Name,
			FileOrigin:   models.FileOriginProcore,
			DocumentType: DetermineFileType(d.NamePath),
			CreatedBy:    d.CreatedBy.Name,
			ProjectID:    p.ID,
		}
		if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
			at.ProcoreCreateDate = t.UnixMilli()
		}
		if i := strings.LastIndex(d.Name, "."); i >= 0 && i < len(d.Name)-1 {
			at.Extension = d.Name[i+1:]
		}

		if len(d.FileVersions) > 0 && d.FileVersions[0].URL != "" {
			data, err := r.client.Download(ctx, d.FileVersions[0].URL)
			if err != nil {
				logs.Logger.Errorf("download %s for project %d: %v", d.Name, p.ID, err)
			} else {
				path, err := r.storage.WriteProcoreFile(procoreID, data)
				if err != nil {
					return err
				}
				at.LocalPath = path
				at.URL = d.FileVersions[0].URL
			}
		}

		if err := r.attachments.Create(ctx, at); err != nil {
			return err
		}
	}
	return nil
}

// DetermineFileType maps the document's folder path to the company's
// document taxonomy. Unknown prefixes yield "".
func DetermineFileType(namePath string) string {
	parts := strings.Split(namePath, "/")
	if len(parts) < 2 {
		return ""
	}
	base := parts[1]

	switch {
	case strings.Contains(base, "1.0_"):
		return "1.0_Public Project Data"
	case strings.Contains(base, "2.2_"):
		return "2.2_Quotes"
	case strings.Contains(base, "2.4_"):
		return "2.4_Material Tracking"
	case strings.Contains(base, "3.0_"):
		return "3.0_Maintenance Documents"
	case strings.Contains(base, "4.2_"):
		if len(parts) > 2 && strings.Contains(parts[2], "10%") {
			return "4.2_Deliverables_10%"
		}
		if len(parts) > 2 && strings.Contains(parts[2], "30%") {
			return "4.2_Deliverables_30%"
		}
		if len(parts) > 3 && strings.Contains(parts[3], "Concept") {
			return "4.2_Deliverables_Concept"
		}
		if len(parts) > 4 && strings.Contains(parts[4], "Exhibits") {
			return "4.2_Deliverables_Exhibits"
		}
		return ""
	case strings.Contains(base, "5.1_"):
		return "5.1_Bid Package"
	case strings.Contains(base, "6.1_"):
		return "6.1_Invoices"
	case strings.Contains(base, "Proposal"):
		return "Proposal"
	case strings.Contains(base, "External Documents"):
		return "External Documents"
	}
	return ""
}
