package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunDocument represents the documents table for Bun ORM
type BunDocument struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID        int        `bun:"id,pk,autoincrement"`
	ULID      string     `bun:"ulid,notnull,unique"` // Stored as string in DB
	Name      string     `bun:"name,notnull"`
	Path      string     `bun:"path,notnull,unique"`
	Hash      string     `bun:"hash,notnull"`
	Format    string     `bun:"format,notnull"`
	PageCount int        `bun:"page_count,notnull,default:0"`
	OpenedAt  *time.Time `bun:"opened_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// ToDocument converts BunDocument to Document
func (bd *BunDocument) ToDocument() (*Document, error) {
	parsedULID, err := ulid.Parse(bd.ULID)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:        bd.ID,
		ULID:      parsedULID,
		Name:      bd.Name,
		Path:      bd.Path,
		Hash:      bd.Hash,
		Format:    bd.Format,
		PageCount: bd.PageCount,
		OpenedAt:  bd.OpenedAt,
		CreatedAt: bd.CreatedAt,
		UpdatedAt: bd.UpdatedAt,
	}, nil
}

// FromDocument converts Document to BunDocument
func FromDocument(doc *Document) *BunDocument {
	bd := &BunDocument{
		ID:        doc.ID,
		ULID:      doc.ULID.String(),
		Name:      doc.Name,
		Path:      doc.Path,
		Hash:      doc.Hash,
		Format:    doc.Format,
		PageCount: doc.PageCount,
		OpenedAt:  doc.OpenedAt,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if bd.CreatedAt.IsZero() {
		bd.CreatedAt = time.Now()
	}
	if bd.UpdatedAt.IsZero() {
		bd.UpdatedAt = bd.CreatedAt
	}
	return bd
}

// BunPage represents the pages table for Bun ORM
type BunPage struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	ID           int    `bun:"id,pk,autoincrement"`
	DocumentULID string `bun:"document_ulid,notnull,unique:document_page"`
	PageIndex    int    `bun:"page_index,notnull,unique:document_page"`
	Width        int    `bun:"width,notnull"`
	Height       int    `bun:"height,notnull"`
}

// ToPage converts BunPage to Page
func (bp *BunPage) ToPage() Page {
	return Page{
		DocumentULID: bp.DocumentULID,
		Index:        bp.PageIndex,
		Width:        bp.Width,
		Height:       bp.Height,
	}
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
