package database

import (
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// Document is a catalogued document file
type Document struct {
	ID        int        `json:"id"`
	ULID      ulid.ULID  `json:"ulid"` // short stable id used in URLs
	Name      string     `json:"name"`
	Path      string     `json:"path"` // full path to the file
	Hash      string     `json:"hash"`
	Format    string     `json:"format"` // djvu or pdf
	PageCount int        `json:"pageCount"`
	OpenedAt  *time.Time `json:"openedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Page holds the pixel dimensions of one page at the configured DPI
type Page struct {
	DocumentULID string `json:"-"`
	Index        int    `json:"index"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Logger is global since we will need it everywhere
var Logger *slog.Logger = slog.Default()

// ErrNotFound is returned when a document or job does not exist
var ErrNotFound = sql.ErrNoRows

// Repository defines database operations
type Repository interface {
	Close() error
	SaveDocument(doc *Document) error
	GetDocumentByULID(ulid string) (*Document, error)
	GetDocumentByPath(path string) (*Document, error)
	GetDocumentByHash(hash string) (*Document, error)
	ListDocuments(limit, offset int) ([]Document, int, error)
	DeleteDocument(ulid string) error
	TouchDocument(ulid string, openedAt time.Time) error
	SavePages(ulid string, pages []Page) error
	GetPages(ulid string) ([]Page, error)
	// Job tracking methods
	CreateJob(jobType JobType, message string) (*Job, error)
	UpdateJobProgress(jobID ulid.ULID, progress, totalSteps int, currentStep string) error
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, errorMsg string) error
	CompleteJob(jobID ulid.ULID, result string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// NewDocumentRecord builds an uncatalogued record for the file at path
func NewDocumentRecord(path, format string, pageCount int) (*Document, error) {
	fileHash, err := calculateHash(path)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	newULID, err := CalculateUUID(now)
	if err != nil {
		Logger.Error("Cannot generate ULID", "filePath", path, "error", err)
		return nil, err
	}
	return &Document{
		ULID:      newULID,
		Name:      filepath.Base(path),
		Path:      filepath.ToSlash(path),
		Hash:      fileHash,
		Format:    format,
		PageCount: pageCount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FetchDocument fetches the requested document by ULID
func FetchDocument(docULIDSt string, db Repository) (*Document, error) {
	if _, err := ulid.Parse(docULIDSt); err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, docULIDSt)
	}
	foundDocument, err := db.GetDocumentByULID(docULIDSt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			Logger.Debug("Unable to find the requested document", "ulid", docULIDSt)
			return nil, err
		}
		Logger.Error("Database error fetching document", "ulid", docULIDSt, "error", err)
		return nil, err
	}
	return foundDocument, nil
}

// calculate the hash of the incoming file
func calculateHash(fileName string) (string, error) {
	var fileHash string
	file, err := os.Open(fileName)
	if err != nil {
		return fileHash, err
	}
	defer file.Close()
	hash := md5.New()
	_, err = io.Copy(hash, file)
	if err != nil {
		return fileHash, err
	}
	fileHash = fmt.Sprintf("%x", hash.Sum(nil))
	return fileHash, nil
}

// CalculateUUID for the incoming file
func CalculateUUID(time time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.UnixNano())), 0)
	newULID, err := ulid.New(ulid.Timestamp(time), entropy)
	if err != nil {
		return newULID, err
	}
	return newULID, nil
}
