package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/godjvu/database"
	"github.com/drummonds/godjvu/djvu"
	"github.com/drummonds/godjvu/renderer"
)

// ErrDuplicate is returned when a file's content is already catalogued under another path
var ErrDuplicate = errors.New("duplicate document")

// registerFile loads the document at path, records it and its page sizes in
// the catalog and keeps the loaded context as the document's session
func (serverHandler *ServerHandler) registerFile(path string) (*documentResponse, error) {
	ctx, err := serverHandler.Sessions.NewContext(path)
	if err != nil {
		return nil, err
	}
	adopted := false
	defer func() {
		if !adopted {
			ctx.Close()
		}
	}()

	count, err := ctx.PageCount()
	if err != nil {
		return nil, err
	}
	format, err := ctx.Format()
	if err != nil {
		return nil, err
	}
	pages := make([]database.Page, 0, count)
	for i := 0; i < count; i++ {
		width, height, err := ctx.PageSize(i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, database.Page{Index: i, Width: width, Height: height})
	}

	record, err := database.NewDocumentRecord(path, format.String(), count)
	if err != nil {
		return nil, err
	}
	existing, err := serverHandler.DB.GetDocumentByHash(record.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Path != record.Path {
		Logger.Info("Duplicate document detected", "path", path, "existingDocument", existing.Path)
		return nil, fmt.Errorf("%w: same content as %s", ErrDuplicate, existing.ULID)
	}

	if err := serverHandler.DB.SaveDocument(record); err != nil {
		Logger.Error("Unable to write document to catalog", "path", path, "error", err)
		return nil, err
	}
	id := record.ULID.String()
	if err := serverHandler.DB.SavePages(id, pages); err != nil {
		Logger.Error("Unable to write page table", "id", id, "error", err)
		return nil, err
	}
	if err := serverHandler.DB.TouchDocument(id, time.Now()); err != nil {
		Logger.Warn("Unable to record open time", "id", id, "error", err)
	}

	// a re-registered file replaces any session opened on the old content
	serverHandler.Sessions.Close(id)
	serverHandler.Sessions.Adopt(id, ctx)
	adopted = true

	Logger.Info("Registered document", "id", id, "path", path, "format", format, "pages", count)
	return &documentResponse{
		Document: record,
		IsPDF:    format == renderer.FormatPDF,
		Pages:    pages,
	}, nil
}

// exportJobFunc renders every page of document to PNG under the export path
// and records progress on the job
func (serverHandler *ServerHandler) exportJobFunc(document database.Document, width int, jobID ulid.ULID) {
	db := serverHandler.DB
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in export job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Rendering pages"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	dir := filepath.Join(serverHandler.ServerConfig.ExportPath, document.ULID.String())
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		db.UpdateJobError(jobID, fmt.Sprintf("Unable to create export folder: %v", err))
		return
	}

	Logger.Info("Starting export job", "jobID", jobID, "document", document.Path, "dir", dir)
	summary, err := ExportPages(context.Background(), ExportOptions{
		Open: func() (*djvu.Context, error) {
			return serverHandler.Sessions.NewContext(document.Path)
		},
		Dir:   dir,
		Width: width,
		Progress: func(done, total int) {
			progress := done * 100 / total
			if progress >= 100 {
				progress = 99
			}
			db.UpdateJobProgress(jobID, progress, total, fmt.Sprintf("Page %d of %d", done, total))
		},
	})
	if err != nil {
		Logger.Error("Export job failed", "jobID", jobID, "error", err)
		db.UpdateJobError(jobID, err.Error())
		return
	}

	result, err := json.Marshal(summary)
	if err != nil {
		db.UpdateJobError(jobID, err.Error())
		return
	}
	if err := db.CompleteJob(jobID, string(result)); err != nil {
		Logger.Error("Failed to mark job as complete", "error", err)
	}
	Logger.Info("Export job completed", "jobID", jobID, "rendered", summary.PagesRendered, "total", summary.PagesTotal, "errors", summary.Errors)
}
