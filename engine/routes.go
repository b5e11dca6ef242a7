package engine

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"

	"github.com/drummonds/godjvu/config"
	"github.com/drummonds/godjvu/database"
	"github.com/drummonds/godjvu/djvu"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Sessions     *SessionStore
}

type registerRequest struct {
	Path string `json:"path"`
}

type documentResponse struct {
	*database.Document
	IsPDF bool            `json:"isPDF"`
	Pages []database.Page `json:"pages"`
}

type pageResponse struct {
	Document string `json:"document"`
	Index    int    `json:"index"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// RegisterRoutes adds the API routes to the handler's echo instance
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo

	e.GET("/api/health", serverHandler.GetHealth)

	// Document API routes
	e.GET("/api/documents", serverHandler.ListDocuments)
	e.POST("/api/documents", serverHandler.RegisterDocument)
	e.POST("/api/documents/upload", serverHandler.UploadDocument)
	e.GET("/api/documents/:id", serverHandler.GetDocument)
	e.DELETE("/api/documents/:id", serverHandler.DeleteDocument)
	e.POST("/api/documents/:id/export", serverHandler.ExportDocument)

	// Page API routes
	e.GET("/api/documents/:id/pages/:page", serverHandler.GetPage)
	e.GET("/api/documents/:id/pages/:page/image", serverHandler.GetPageImage)
	e.GET("/api/documents/:id/pages/:page/raw", serverHandler.GetPageRaw)
	e.GET("/api/documents/:id/pages/:page/text", serverHandler.GetPageText)

	// Job API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
}

// errorStatus maps context errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, djvu.ErrFileNotFound), errors.Is(err, djvu.ErrPageRange):
		return http.StatusNotFound
	case errors.Is(err, djvu.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, djvu.ErrNoPages), errors.Is(err, djvu.ErrLayout):
		return http.StatusUnprocessableEntity
	case errors.Is(err, djvu.ErrInvalidSize), errors.Is(err, djvu.ErrBufferSize):
		return http.StatusBadRequest
	case errors.Is(err, djvu.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func jsonError(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]interface{}{
		"error": err.Error(),
		"code":  djvu.Code(err),
	})
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	value := c.QueryParam(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", djvu.ErrInvalidSize, name, value)
	}
	return n, nil
}

// resolveDocumentPath joins a client supplied path onto the document root
// without letting it escape
func resolveDocumentPath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", djvu.ErrFileNotFound)
	}
	return filepath.Join(root, filepath.Clean("/"+filepath.ToSlash(rel))), nil
}

// session returns the open context for a catalogued document, loading it on demand
func (serverHandler *ServerHandler) session(id string) (*database.Document, *djvu.Context, error) {
	document, err := database.FetchDocument(id, serverHandler.DB)
	if err != nil {
		return nil, nil, err
	}
	if ctx, ok := serverHandler.Sessions.Get(id); ok {
		return document, ctx, nil
	}

	ctx, err := serverHandler.Sessions.Open(id, document.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := serverHandler.DB.TouchDocument(id, time.Now()); err != nil {
		Logger.Warn("Unable to record open time", "id", id, "error", err)
	}
	return document, ctx, nil
}

// withPage runs fn against the session and page named by the route and writes
// any error fn returns. A session evicted between lookup and use is reopened once.
func (serverHandler *ServerHandler) withPage(c echo.Context, fn func(ctx *djvu.Context, page int) error) error {
	id := c.Param("id")
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid page number",
		})
	}

	for attempt := 0; ; attempt++ {
		_, ctx, err := serverHandler.session(id)
		if err != nil {
			Logger.Debug("Unable to open document session", "id", id, "error", err)
			return jsonError(c, err)
		}
		err = fn(ctx, page)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, djvu.ErrClosed) && attempt == 0:
			serverHandler.Sessions.CloseIf(id, ctx)
			continue
		case c.Response().Committed:
			Logger.Error("Failed writing page response", "id", id, "page", page, "error", err)
			return err
		}
		return jsonError(c, err)
	}
}

// GetHealth reports service status
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (serverHandler *ServerHandler) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": serverHandler.Sessions.Len(),
		"engine":   serverHandler.ServerConfig.PDFEngine,
		"dpi":      serverHandler.ServerConfig.RenderDPI,
	})
}

// ListDocuments returns the catalog with pagination
// @Summary List catalogued documents
// @Tags Documents
// @Produce json
// @Param limit query int false "Number of documents to return (default: 50)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {object} map[string]interface{}
// @Router /documents [get]
func (serverHandler *ServerHandler) ListDocuments(c echo.Context) error {
	limit := 50
	offset := 0

	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	documents, total, err := serverHandler.DB.ListDocuments(limit, offset)
	if err != nil {
		Logger.Error("Failed to list documents", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve documents",
		})
	}
	if documents == nil {
		documents = []database.Document{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": documents,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// RegisterDocument catalogues a file already under the document path
// @Summary Register a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param request body registerRequest true "Path relative to the document root"
// @Success 201 {object} documentResponse
// @Failure 404 {object} map[string]interface{} "File not found"
// @Failure 415 {object} map[string]interface{} "Not a DjVu or PDF document"
// @Router /documents [post]
func (serverHandler *ServerHandler) RegisterDocument(c echo.Context) error {
	var request registerRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid request body",
		})
	}

	path, err := resolveDocumentPath(serverHandler.ServerConfig.DocumentPath, request.Path)
	if err != nil {
		return jsonError(c, err)
	}

	response, err := serverHandler.registerFile(path)
	if err != nil {
		Logger.Info("Document registration failed", "path", path, "error", err)
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, response)
}

// UploadDocument stores an uploaded file under the document path and catalogues it
// @Summary Upload a document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "DjVu or PDF document"
// @Success 201 {object} documentResponse
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 413 {object} map[string]interface{} "File too large"
// @Router /documents/upload [post]
func (serverHandler *ServerHandler) UploadDocument(c echo.Context) error {
	file, fileHeader, err := c.Request().FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Missing file",
		})
	}
	defer file.Close()

	maxBytes := int64(serverHandler.ServerConfig.MaxUploadMB) << 20
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
			"error": fmt.Sprintf("File exceeds %d MB", serverHandler.ServerConfig.MaxUploadMB),
		})
	}

	uploadDir := filepath.Join(serverHandler.ServerConfig.DocumentPath, "uploads")
	if err := os.MkdirAll(uploadDir, os.ModePerm); err != nil {
		Logger.Error("Unable to create upload folder", "path", uploadDir, "error", err)
		return jsonError(c, err)
	}

	name := filepath.Base(filepath.Clean("/" + fileHeader.Filename))
	if name == "/" || name == "." {
		name = "upload"
	}
	path := filepath.Join(uploadDir, name)
	if _, err := os.Stat(path); err == nil {
		id, _ := database.CalculateUUID(time.Now())
		path = filepath.Join(uploadDir, strings.ToLower(id.String())+"-"+name)
	}

	out, err := os.Create(path)
	if err != nil {
		Logger.Error("Unable to write uploaded file", "path", path, "error", err)
		return jsonError(c, err)
	}
	_, err = io.Copy(out, file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		Logger.Error("Unable to write uploaded file", "path", path, "error", err)
		return jsonError(c, err)
	}
	Logger.Debug("Stored upload", "path", path, "bytes", fileHeader.Size)

	response, err := serverHandler.registerFile(path)
	if err != nil {
		os.Remove(path)
		Logger.Info("Uploaded file rejected", "name", fileHeader.Filename, "error", err)
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, response)
}

// GetDocument returns the catalog entry and live session details of a document
// @Summary Get a document by ID
// @Tags Documents
// @Produce json
// @Param id path string true "Document ULID"
// @Success 200 {object} documentResponse
// @Failure 404 {object} map[string]interface{} "Document not found"
// @Router /documents/{id} [get]
func (serverHandler *ServerHandler) GetDocument(c echo.Context) error {
	id := c.Param("id")
	document, ctx, err := serverHandler.session(id)
	if err != nil {
		return jsonError(c, err)
	}

	isPDF, err := ctx.IsPDF()
	if err != nil {
		return jsonError(c, err)
	}
	pages, err := serverHandler.DB.GetPages(id)
	if err != nil {
		Logger.Error("Failed to load page table", "id", id, "error", err)
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, documentResponse{Document: document, IsPDF: isPDF, Pages: pages})
}

// DeleteDocument closes the session and removes the catalog entry. The file is kept.
// @Summary Remove a document from the catalog
// @Tags Documents
// @Produce json
// @Param id path string true "Document ULID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Document not found"
// @Router /documents/{id} [delete]
func (serverHandler *ServerHandler) DeleteDocument(c echo.Context) error {
	id := c.Param("id")
	closed := serverHandler.Sessions.Close(id)

	if err := serverHandler.DB.DeleteDocument(id); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			Logger.Error("Unable to delete document from database", "id", id, "error", err)
		}
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted":       id,
		"sessionClosed": closed,
	})
}

// GetPage returns the natural pixel size of a page
// @Summary Get page dimensions
// @Tags Pages
// @Produce json
// @Param id path string true "Document ULID"
// @Param page path int true "Zero-based page index"
// @Success 200 {object} pageResponse
// @Failure 404 {object} map[string]interface{} "Page out of range"
// @Router /documents/{id}/pages/{page} [get]
func (serverHandler *ServerHandler) GetPage(c echo.Context) error {
	return serverHandler.withPage(c, func(ctx *djvu.Context, page int) error {
		width, height, err := ctx.PageSize(page)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pageResponse{Document: c.Param("id"), Index: page, Width: width, Height: height})
	})
}

// targetSize resolves the requested render size against the natural page size.
// A missing side keeps the aspect ratio, no sides means natural size.
func targetSize(c echo.Context, ctx *djvu.Context, page int) (int, int, error) {
	width, err := queryInt(c, "width", 0)
	if err != nil {
		return 0, 0, err
	}
	height, err := queryInt(c, "height", 0)
	if err != nil {
		return 0, 0, err
	}
	if width < 0 || height < 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", djvu.ErrInvalidSize, width, height)
	}
	if width > 0 && height > 0 {
		return width, height, nil
	}

	naturalW, naturalH, err := ctx.PageSize(page)
	if err != nil {
		return 0, 0, err
	}
	width, height = ScaleToFit(naturalW, naturalH, width, height)
	return width, height, nil
}

// ScaleToFit fills in whichever of width and height is zero from the natural aspect ratio
func ScaleToFit(naturalW, naturalH, width, height int) (int, int) {
	switch {
	case width == 0 && height == 0:
		return naturalW, naturalH
	case width == 0:
		width = max(1, (naturalW*height+naturalH/2)/naturalH)
	case height == 0:
		height = max(1, (naturalH*width+naturalW/2)/naturalW)
	}
	return width, height
}

// GetPageImage renders a page as PNG
// @Summary Render a page as PNG
// @Tags Pages
// @Produce png
// @Param id path string true "Document ULID"
// @Param page path int true "Zero-based page index"
// @Param width query int false "Target width in pixels"
// @Param height query int false "Target height in pixels"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]interface{} "Invalid size"
// @Router /documents/{id}/pages/{page}/image [get]
func (serverHandler *ServerHandler) GetPageImage(c echo.Context) error {
	return serverHandler.withPage(c, func(ctx *djvu.Context, page int) error {
		width, height, err := targetSize(c, ctx, page)
		if err != nil {
			return err
		}
		img, err := ctx.RenderImage(page, width, height)
		if err != nil {
			return err
		}

		response := c.Response()
		response.Header().Set(echo.HeaderContentType, "image/png")
		response.WriteHeader(http.StatusOK)
		return imaging.Encode(response, img, imaging.PNG)
	})
}

// GetPageRaw renders a page into a raw RGBA8 buffer
// @Summary Render a page as raw RGBA8
// @Tags Pages
// @Produce octet-stream
// @Param id path string true "Document ULID"
// @Param page path int true "Zero-based page index"
// @Param width query int false "Target width in pixels"
// @Param height query int false "Target height in pixels"
// @Success 200 {file} binary
// @Router /documents/{id}/pages/{page}/raw [get]
func (serverHandler *ServerHandler) GetPageRaw(c echo.Context) error {
	return serverHandler.withPage(c, func(ctx *djvu.Context, page int) error {
		width, height, err := targetSize(c, ctx, page)
		if err != nil {
			return err
		}
		size, err := djvu.BufferSize(width, height)
		if err != nil {
			return err
		}
		buf := make([]byte, size)
		if err := ctx.RenderPage(page, width, height, buf); err != nil {
			return err
		}

		header := c.Response().Header()
		header.Set("X-Page-Width", strconv.Itoa(width))
		header.Set("X-Page-Height", strconv.Itoa(height))
		header.Set("X-Pixel-Format", "RGBA8")
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, buf)
	})
}

// GetPageText returns the hidden text layer of a page
// @Summary Get page text
// @Tags Pages
// @Produce json
// @Param id path string true "Document ULID"
// @Param page path int true "Zero-based page index"
// @Success 200 {object} map[string]interface{}
// @Router /documents/{id}/pages/{page}/text [get]
func (serverHandler *ServerHandler) GetPageText(c echo.Context) error {
	return serverHandler.withPage(c, func(ctx *djvu.Context, page int) error {
		text, err := ctx.PageText(page)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"document": c.Param("id"),
			"index":    page,
			"text":     text,
		})
	})
}

// ExportDocument starts a background job rendering every page to PNG
// @Summary Export all pages as PNG
// @Tags Documents
// @Produce json
// @Param id path string true "Document ULID"
// @Param width query int false "Target width in pixels, height follows the page aspect"
// @Success 202 {object} database.Job
// @Failure 404 {object} map[string]interface{} "Document not found"
// @Router /documents/{id}/export [post]
func (serverHandler *ServerHandler) ExportDocument(c echo.Context) error {
	id := c.Param("id")
	document, err := database.FetchDocument(id, serverHandler.DB)
	if err != nil {
		return jsonError(c, err)
	}
	width, err := queryInt(c, "width", 0)
	if err != nil || width < 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid width",
		})
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeExport, "Export of "+document.Name)
	if err != nil {
		Logger.Error("Failed to create export job", "id", id, "error", err)
		return jsonError(c, err)
	}

	go serverHandler.exportJobFunc(*document, width, job.ID)

	return c.JSON(http.StatusAccepted, job)
}
