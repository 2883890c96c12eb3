package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/entitlement"
	"github.com/24f2002329/caniedit/internal/metrics"
	"github.com/24f2002329/caniedit/internal/middleware"
	"github.com/24f2002329/caniedit/internal/models"
	"github.com/24f2002329/caniedit/internal/pdf"
	"github.com/24f2002329/caniedit/internal/storage"
	"github.com/24f2002329/caniedit/internal/tools"
)

const (
	toolMerge    = "merge"
	toolCompress = "compress"

	maxUploadFiles    = 20
	multipartOverhead = 1 << 20

	MsgFileTooLarge    = "File too large. Max %dMB allowed."
	MsgRequestTooLarge = "Upload too large. Max %dMB per request."
	MsgEncrypted       = "One of the PDFs is password protected. Please unlock it first and try again."
	MsgInvalidPDF      = "One of the files is not a valid PDF."
	MsgTooFewFiles     = "Please upload at least two PDF files to merge."
	MsgMissingFile     = "Please upload a PDF file."
	MsgInvalidLevel    = "Invalid compression level. Use low, balanced or high."
	MsgInvalidName     = "Invalid filename"
	MsgFileNotFound    = "File not found"
	MsgNotFileOwner    = "Not authorized to delete this file"
	MsgToolNotFound    = "Tool not found"
	MsgDeleteFailed    = "Unable to delete file right now"
	MsgInvalidRequest  = "Invalid multipart request"
)

// toolSlugs maps URL names to registry slugs.
var toolSlugs = map[string]string{
	toolMerge:    tools.SlugMerge,
	toolCompress: tools.SlugCompress,
}

// RunTool handles POST /tool/:slug
func (h *Handlers) RunTool(c *gin.Context) {
	// 1. --- Resolve the tool ---
	name := c.Param("slug")
	slug, ok := toolSlugs[name]
	if !ok {
		h.fail(c, apperrors.NotFound(MsgToolNotFound))
		return
	}

	// 2. --- Read and validate uploads before charging ---
	limit := h.requestLimit()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(c, apperrors.PayloadTooLarge(fmt.Sprintf(MsgRequestTooLarge, limit/(1024*1024))))
			return
		}
		h.fail(c, apperrors.Validation(MsgInvalidRequest))
		return
	}

	var (
		inputs []pdf.Input
		level  string
	)
	switch name {
	case toolMerge:
		files := form.File["files"]
		if len(files) < 2 {
			h.fail(c, apperrors.Validation(MsgTooFewFiles))
			return
		}
		if inputs, err = h.readUploads(files); err != nil {
			h.fail(c, err)
			return
		}
	case toolCompress:
		files := form.File["file"]
		if len(files) != 1 {
			h.fail(c, apperrors.Validation(MsgMissingFile))
			return
		}
		if level, err = pdf.NormalizeLevel(c.PostForm("level")); err != nil {
			h.fail(c, apperrors.Validation(MsgInvalidLevel))
			return
		}
		if inputs, err = h.readUploads(files); err != nil {
			h.fail(c, err)
			return
		}
	}

	// 3. --- Admit and charge ---
	scope := middleware.CallerScope(c)
	if _, err := h.Gate.Admit(c.Request.Context(), entitlement.Request{Tool: slug, Scope: scope}); err != nil {
		h.fail(c, err)
		return
	}

	// 4. --- Process ---
	var out bytes.Buffer
	start := time.Now()
	if name == toolMerge {
		err = h.Processor.Merge(c.Request.Context(), inputs, &out)
	} else {
		err = h.Processor.Compress(c.Request.Context(), inputs[0], level, &out)
	}
	metrics.ToolDuration.WithLabelValues(slug).Observe(time.Since(start).Seconds())
	if err != nil {
		h.fail(c, processingError(err))
		return
	}

	// 5. --- Store the artifact ---
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	fallback := "merged"
	if name == toolCompress {
		fallback = "compressed"
	}
	filename := storage.OutputName(names, fallback)

	path, err := h.Store.Save(filename, &out)
	if err != nil {
		h.fail(c, apperrors.Wrap(err, "save artifact"))
		return
	}

	if user, ok := middleware.CurrentUser(c); ok {
		owner := user.ID
		rec := &models.FileRecord{UserID: &owner, Tool: slug, Filename: filename, StoragePath: path}
		if err := h.Files.Insert(c.Request.Context(), rec); err != nil {
			h.fail(c, apperrors.Wrap(err, "record artifact owner"))
			return
		}
	}

	h.Log.Info("Tool completed",
		zap.String("tool", slug),
		zap.String("scope", scope.Key()),
		zap.String("file", filename),
		zap.Int("inputs", len(inputs)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"file":    filename,
	})
}

// DeleteToolFile handles DELETE /tool/:slug/:filename
func (h *Handlers) DeleteToolFile(c *gin.Context) {
	if _, ok := toolSlugs[c.Param("slug")]; !ok {
		h.fail(c, apperrors.NotFound(MsgToolNotFound))
		return
	}
	filename := c.Param("filename")
	if !storage.ValidName(filename) {
		h.fail(c, apperrors.Validation(MsgInvalidName))
		return
	}

	// 1. --- Owned artifacts can only be removed by their owner ---
	rec, err := h.Files.ByFilename(c.Request.Context(), filename)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec = nil
	case err != nil:
		h.fail(c, apperrors.Wrap(err, "load artifact owner"))
		return
	}
	if rec != nil {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			h.fail(c, apperrors.AuthenticationRequired(middleware.MsgMissingToken))
			return
		}
		if rec.UserID == nil || *rec.UserID != user.ID {
			h.fail(c, apperrors.Forbidden(MsgNotFileOwner))
			return
		}
	}

	// 2. --- Remove the file, then its record ---
	if err := h.Store.Delete(filename); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.fail(c, apperrors.NotFound(MsgFileNotFound))
			return
		}
		h.fail(c, &apperrors.Error{Kind: apperrors.KindInternal, Message: MsgDeleteFailed, Err: err})
		return
	}
	if rec != nil {
		if err := h.Files.Delete(c.Request.Context(), rec.ID); err != nil {
			h.fail(c, apperrors.Wrap(err, "delete artifact record"))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DownloadFile handles GET /files/:filename
func (h *Handlers) DownloadFile(c *gin.Context) {
	filename := c.Param("filename")
	path, err := h.Store.Path(filename)
	if err != nil {
		h.fail(c, apperrors.Validation(MsgInvalidName))
		return
	}
	ok, err := h.Store.Exists(filename)
	if err != nil {
		h.fail(c, apperrors.Wrap(err, "stat artifact"))
		return
	}
	if !ok {
		h.fail(c, apperrors.NotFound(MsgFileNotFound))
		return
	}
	c.FileAttachment(path, filename)
}

func (h *Handlers) requestLimit() int64 {
	if h.MaxRequestBytes > 0 {
		return h.MaxRequestBytes
	}
	return h.MaxFileBytes*maxUploadFiles + multipartOverhead
}

// readUploads buffers each upload after checking its size.
func (h *Handlers) readUploads(files []*multipart.FileHeader) ([]pdf.Input, error) {
	tooLarge := apperrors.PayloadTooLarge(fmt.Sprintf(MsgFileTooLarge, h.MaxFileBytes/(1024*1024)))

	inputs := make([]pdf.Input, 0, len(files))
	for _, fh := range files {
		if fh.Size > h.MaxFileBytes {
			return nil, tooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.Validation(MsgInvalidRequest)
		}
		data, err := io.ReadAll(io.LimitReader(f, h.MaxFileBytes+1))
		f.Close()
		if err != nil {
			return nil, apperrors.Validation(MsgInvalidRequest)
		}
		if int64(len(data)) > h.MaxFileBytes {
			return nil, tooLarge
		}
		inputs = append(inputs, pdf.Input{Name: fh.Filename, Data: bytes.NewReader(data)})
	}
	return inputs, nil
}

func processingError(err error) error {
	switch {
	case errors.Is(err, pdf.ErrEncrypted):
		return apperrors.Validation(MsgEncrypted)
	case errors.Is(err, pdf.ErrInvalidPDF):
		return apperrors.Validation(MsgInvalidPDF)
	case errors.Is(err, pdf.ErrTooFewInputs):
		return apperrors.Validation(MsgTooFewFiles)
	case errors.Is(err, pdf.ErrUnknownLevel):
		return apperrors.Validation(MsgInvalidLevel)
	default:
		return apperrors.Wrap(err, "process pdf")
	}
}
