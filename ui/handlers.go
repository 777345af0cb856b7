package ui

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"goodsam/domain/core"
	"goodsam/internal/analysis"
	"goodsam/internal/errors"
	"goodsam/internal/report"
)

func (s *Server) handleHome(c *gin.Context) {
	c.String(http.StatusOK, "backend is running")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleColumns(c *gin.Context) {
	cols, err := s.service.Columns()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols})
}

func (s *Server) handleColumnRanges(c *gin.Context) {
	ranges, err := s.service.ColumnRanges()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columnRanges": ranges})
}

func (s *Server) handlePatterns(c *gin.Context) {
	patterns, err := s.service.Patterns()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

func (s *Server) handleConstraints(c *gin.Context) {
	id, err := core.ParsePatternID(c.Query("ID"))
	if err != nil {
		s.respondError(c, &errors.AppError{
			Code:    errors.CodeInvalidInput,
			Message: "ID parameter is required and should be an integer.",
			Cause:   err,
		})
		return
	}
	bounds, err := s.service.PatternBounds(int(id))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounds)
}

// patternParam reads ?pattern=, defaulting to the configured pattern
func (s *Server) patternParam(c *gin.Context) (int, error) {
	raw := c.Query("pattern")
	if raw == "" {
		return s.service.DefaultPattern(), nil
	}
	id, err := core.ParsePatternID(raw)
	if err != nil {
		return 0, &errors.AppError{Code: errors.CodeInvalidInput, Message: "pattern should be an integer.", Cause: err}
	}
	return int(id), nil
}

func (s *Server) handleHistogram(c *gin.Context) {
	id, err := s.patternParam(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx, cancel := s.analysisContext(c)
	defer cancel()

	s.logger.Info("[API] histogram for pattern %d", id)
	res, err := s.service.AnalyzePattern(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHistData(res))
}

func (s *Server) handleReport(c *gin.Context) {
	id, err := s.patternParam(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx, cancel := s.analysisContext(c)
	defer cancel()

	res, err := s.service.AnalyzePattern(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	page := report.Report{
		Title:      fmt.Sprintf("Pattern %d", id),
		Column:     res.Column,
		Conditions: res.Conditions,
		Effect:     res.Effect,
	}.Page()
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) bindRequest(c *gin.Context) (analysis.Request, bool) {
	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return req, false
	}
	return req, true
}

func (s *Server) handleUserPattern(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}
	ctx, cancel := s.analysisContext(c)
	defer cancel()

	s.logger.Info("[API] user pattern over %d constraints, law %q", len(req.Constraints), req.Law)
	res, err := s.service.AnalyzeConstraints(ctx, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userPatternResponse{
		Selection:   res.Selection,
		HistData:    newHistData(&res.Result),
		CountyNames: res.CountyNames,
		StateNames:  res.StateNames,
	})
}

func (s *Server) handleCrossVal(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}
	ctx, cancel := s.analysisContext(c)
	defer cancel()

	s.logger.Info("[API] k-fold over %d constraints, law %q", len(req.Constraints), req.Law)
	res, err := s.service.CrossValidate(ctx, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kFoldNRMSE": Number(res.Mean), "kFoldScores": numbers(res.Scores)})
}

func (s *Server) handleGeomapFilter(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}
	sel, err := s.service.GeomapFilter(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

func (s *Server) handleListFiles(c *gin.Context) {
	files, err := s.service.ListFiles(strings.TrimPrefix(c.Query("type"), "."))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

type reloadRequest struct {
	MainFile    string `json:"mainFile"`
	PatternFile string `json:"patternFile"`
}

func (s *Server) handleReloadData(c *gin.Context) {
	var req reloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}
	files, err := s.service.Reload(c.Request.Context(), req.MainFile, req.PatternFile)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Data reloaded successfully",
		"mainFile":    files.Main,
		"patternFile": req.PatternFile,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, &errors.AppError{Code: errors.CodeInvalidInput, Message: "No file part in the request", Cause: err})
		return
	}
	if header.Filename == "" {
		s.respondError(c, errors.InvalidInput("No file selected"))
		return
	}
	fileType := c.DefaultPostForm("type", "unknown")

	f, err := header.Open()
	if err != nil {
		s.respondError(c, errors.Wrap(err, "opening upload"))
		return
	}
	defer f.Close()

	name, err := s.service.SaveFile(header.Filename, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "File uploaded successfully",
		"filename": name,
		"type":     fileType,
		"path":     filepath.Join(s.cfg.DataDir, name),
		"size":     header.Size,
	})
}
