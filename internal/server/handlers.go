package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/common"
	"github.com/nokoro/statement-tracker/internal/repository"
)

// uploadStatement accepts a multipart PDF, stores it, runs extraction
// synchronously, and persists the result.
func (s *Server) uploadStatement(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	ext := constants.NormalizeExt(filepath.Ext(file.Filename))
	if !constants.IsAllowedExt(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF files are accepted"})
		return
	}
	if file.Size > s.cfg.Upload.MaxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds size limit"})
		return
	}

	issuer := ""
	if hint := c.PostForm("issuer"); hint != "" {
		norm, ok := constants.NormalizeIssuer(hint)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown issuer: " + hint})
			return
		}
		issuer = norm
	}

	if err := os.MkdirAll(s.cfg.Upload.Dir, 0o755); err != nil {
		s.fail(c, common.WrapError(err, "create upload dir"))
		return
	}
	storedName := uuid.New().String() + "_" + filepath.Base(file.Filename)
	storedPath := filepath.Join(s.cfg.Upload.Dir, storedName)
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		s.fail(c, common.WrapError(err, "store upload"))
		return
	}

	if err := pdfapi.ValidateFile(storedPath, nil); err != nil {
		_ = os.Remove(storedPath)
		s.logger.Warn("server.upload.invalid_pdf", "filename", file.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a valid PDF"})
		return
	}

	rec := s.pipeline.Extract(c.Request.Context(), storedPath, issuer)

	st := &repository.Statement{
		Filename: file.Filename,
		FilePath: storedPath,
		Issuer:   issuer,
	}
	st.ApplyRecord(rec)
	if err := s.statements.Create(c.Request.Context(), st); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("server.upload.ok",
		"id", st.ID,
		"filename", file.Filename,
		"method", rec.Method,
		"overall_confidence", rec.OverallConfidence,
	)
	c.JSON(http.StatusCreated, toResponse(st))
}

func (s *Server) listStatements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	items, err := s.statements.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]statementResponse, 0, len(items))
	for _, st := range items {
		out = append(out, toResponse(st))
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "page": page, "page_size": limit})
}

func (s *Server) getStatement(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toResponse(st))
}

func (s *Server) updateStatement(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Issuer != nil && *req.Issuer != "" {
		norm, ok := constants.NormalizeIssuer(*req.Issuer)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown issuer: " + *req.Issuer})
			return
		}
		req.Issuer = &norm
	}
	if err := req.apply(st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.statements.Update(c.Request.Context(), st); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(st))
}

// reprocessStatement re-runs extraction on the stored file and overwrites the
// extraction columns wholesale.
func (s *Server) reprocessStatement(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}

	rec := s.pipeline.Extract(c.Request.Context(), st.FilePath, st.Issuer)
	st.ApplyRecord(rec)
	if err := s.statements.Update(c.Request.Context(), st); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("server.reprocess.ok", "id", st.ID, "method", rec.Method)
	c.JSON(http.StatusOK, toResponse(st))
}

func (s *Server) deleteStatement(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := s.statements.Delete(c.Request.Context(), st.ID); err != nil {
		s.fail(c, err)
		return
	}
	if st.FilePath != "" {
		if err := os.Remove(st.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("server.delete.file_cleanup", "path", st.FilePath, "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) serveStatementFile(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	if _, err := os.Stat(st.FilePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stored file is missing"})
		return
	}
	c.FileAttachment(st.FilePath, st.Filename)
}

func (s *Server) exportStatements(c *gin.Context) {
	data, err := s.exporter.ExportXLSX(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="statements.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *Server) statementStats(c *gin.Context) {
	stats, err := s.statements.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		Total:             stats.Total,
		Processed:         stats.Processed,
		WithErrors:        stats.WithErrors,
		AverageConfidence: stats.AverageConfidence,
		ByIssuer:          stats.ByIssuer,
	})
}

// lookup loads the statement in the :id param, answering the error itself.
func (s *Server) lookup(c *gin.Context) (*repository.Statement, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement id"})
		return nil, false
	}
	st, err := s.statements.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return st, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("server.request.failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
