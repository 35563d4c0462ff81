package hubspot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"girder/internal/logs"
	"girder/internal/models"
)

// ProcessProjectDocuments walks every note attached to the project's
// deal, stages new attachments locally, and pushes anything not yet
// mirrored downstream.
func (r *Reconciler) ProcessProjectDocuments(ctx context.Context, account *models.Account, project *models.Project) error {
	if err := r.ReadAttachmentsForProject(ctx, account, project); err != nil {
		return err
	}
	pending, err := r.attachments.FindMissingProcoreID(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, at := range pending {
		if err := r.downstream.PushAttachment(ctx, account, project, at); err != nil {
			logs.Logger.Errorf("attachment %s push failed for project %d: %v", at.HSID, project.ID, err)
		}
	}
	return nil
}

// ReadAttachmentsForProject discovers note attachments on the deal and
// stages each unseen file to local storage.
func (r *Reconciler) ReadAttachmentsForProject(ctx context.Context, account *models.Account, project *models.Project) error {
	notes, err := r.client.GetAssociations(ctx, account.ID, "deals", project.HSID, "notes")
	if err != nil {
		return fmt.Errorf("deal %s notes: %w", project.HSID, err)
	}
	for _, ref := range notes {
		if err := r.ProcessDocumentNote(ctx, account, project, ref.ID); err != nil {
			logs.Logger.Errorf("note %s for deal %s: %v", ref.ID, project.HSID, err)
		}
	}
	return nil
}

// ProcessDocumentNote stages every attachment carried by one note.
// The attachment id list is semicolon separated.
func (r *Reconciler) ProcessDocumentNote(ctx context.Context, account *models.Account, project *models.Project, noteID string) error {
	note, err := r.client.GetNote(ctx, account.ID, noteID)
	if err != nil {
		return err
	}
	if note.Properties.AttachmentIDs == "" {
		return nil
	}
	for _, fileID := range strings.Split(note.Properties.AttachmentIDs, ";") {
		fileID = strings.TrimSpace(fileID)
		if fileID == "" {
			continue
		}
		if err := r.ProcessAttachment(ctx, account, project, noteID, fileID); err != nil {
			logs.Logger.Errorf("attachment %s on note %s: %v", fileID, noteID, err)
		}
	}
	return nil
}

// ProcessAttachment downloads one portal file into the staging area and
// records it. Already-seen files are skipped, which makes redelivered
// webhooks cheap.
func (r *Reconciler) ProcessAttachment(ctx context.Context, account *models.Account, project *models.Project, noteID, fileID string) error {
	existing, err := r.attachments.FindByHSID(ctx, project.ID, fileID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	meta, err := r.client.GetFile(ctx, account.ID, fileID)
	if err != nil {
		return fmt.Errorf("file meta %s: %w", fileID, err)
	}
	signed, err := r.client.GetSignedURL(ctx, account.ID, fileID)
	if err != nil {
		return fmt.Errorf("signed url %s: %w", fileID, err)
	}
	data, err := r.client.Download(ctx, signed)
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}

	name := meta.Name
	if meta.Extension != "" && !strings.HasSuffix(name, "."+meta.Extension) {
		name = name + "." + meta.Extension
	}
	path, err := r.storage.WriteHubSpotFile(fileID, data)
	if err != nil {
		return err
	}

	at := &models.Attachment{
		HSID:       fileID,
		HSNoteID:   noteID,
		Filename:   name,
		Extension:  meta.Extension,
		URL:        meta.URL,
		LocalPath:  path,
		FileOrigin: models.FileOriginHubSpot,
		ProjectID:  project.ID,
	}
	return r.attachments.Create(ctx, at)
}

// SyncAttachmentsFromProcore mirrors construction-side documents into
// the portal: upload the staged file, create the document object, and
// pin a note carrying the file to it.
func (r *Reconciler) SyncAttachmentsFromProcore(ctx context.Context, account *models.Account, project *models.Project) error {
	pending, err := r.attachments.FindMissingDocumentObject(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, at := range pending {
		if err := r.publishAttachment(ctx, account, project, at); err != nil {
			logs.Logger.Errorf("attachment %s publish failed for project %d: %v", at.ProcoreID, project.ID, err)
		}
	}
	return nil
}

func (r *Reconciler) publishAttachment(ctx context.Context, account *models.Account, project *models.Project, at *models.Attachment) error {
	data, err := r.storage.Read(at.LocalPath)
	if err != nil {
		return fmt.Errorf("read staged file %s: %w", at.LocalPath, err)
	}

	uploaded, err := r.UploadFile(ctx, account, at.Filename, data)
	if err != nil {
		return err
	}
	at.HSID = uploaded.ID
	at.URL = uploaded.URL

	docID, err := r.CreateDocumentObject(ctx, account, at)
	if err != nil {
		return err
	}
	at.HSDocumentObjectID = docID

	if project.HSID != "" {
		if err := r.client.Associate(ctx, account.ID, r.cfg.HubSpot.DocumentObjectID, docID, "deals", project.HSID); err != nil {
			logs.Logger.Warnf("document %s deal association failed: %v", docID, err)
		}
	}

	noteID, err := r.CreateNoteForAttachment(ctx, account, at)
	if err != nil {
		logs.Logger.Warnf("note for document %s failed: %v", docID, err)
	} else {
		at.HSNoteID = noteID
	}
	return r.attachments.Save(ctx, at)
}

// UploadFile pushes raw bytes into the portal file manager.
func (r *Reconciler) UploadFile(ctx context.Context, account *models.Account, name string, data []byte) (*File, error) {
	return r.client.UploadFile(ctx, account.ID, r.cfg.HubSpot.UploadFolderID, name, data)
}

// CreateDocumentObject creates the portal custom object describing one
// synced document.
func (r *Reconciler) CreateDocumentObject(ctx context.Context, account *models.Account, at *models.Attachment) (string, error) {
	props := map[string]string{
		"file_name":     at.Filename,
		"file_url":      at.URL,
		"document_type": at.DocumentType,
		"created_by":    at.CreatedBy,
	}
	if at.ProcoreCreateDate != 0 {
		props["create_date"] = strconv.FormatInt(at.ProcoreCreateDate, 10)
	}
	return r.client.CreateObject(ctx, account.ID, r.cfg.HubSpot.DocumentObjectID, props)
}

// CreateNoteForAttachment creates a note carrying the uploaded file and
// associates it with the document object.
func (r *Reconciler) CreateNoteForAttachment(ctx context.Context, account *models.Account, at *models.Attachment) (string, error) {
	note, err := r.client.CreateNote(ctx, account.ID, map[string]string{
		"hs_note_body":      at.Filename,
		"hs_timestamp":      strconv.FormatInt(time.Now().UnixMilli(), 10),
		"hs_attachment_ids": at.HSID,
	})
	if err != nil {
		return "", err
	}
	if r.cfg.HubSpot.DocNoteAssocID != "" {
		if err := r.client.AssociateNoteWithObject(ctx, account.ID, note.ID,
			r.cfg.HubSpot.DocumentObjectID, at.HSDocumentObjectID, r.cfg.HubSpot.DocNoteAssocID); err != nil {
			logs.Logger.Warnf("note %s association failed: %v", note.ID, err)
		}
	}
	return note.ID, nil
}
