package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/zoobzio/optz"
)

// Messages returned to clients.
const (
	MsgNoFile       = "Please upload a file."
	MsgReadFailed   = "Error reading the file: "
	MsgOptimizeFail = "Error optimizing code: "
)

// multipartOverhead is the allowance for multipart framing on top of the
// pipeline's size budget.
const multipartOverhead = 64 << 10

// OptimizeResponse is the body of a successful /optimize call.
type OptimizeResponse struct {
	RunID        string             `json:"runId"`
	Language     string             `json:"language"`
	OriginalCode string             `json:"originalCode"`
	Code         string             `json:"optimizedCode"`
	Before       optz.MemoryUsage   `json:"beforeMemory"`
	After        optz.MemoryUsage   `json:"afterMemory"`
	Timings      []optz.TimingEntry `json:"timingEntries"`
	Insights     []string           `json:"optimizationInsights"`
}

// EditedResponse is the body of every /optimizeEdited call.
type EditedResponse struct {
	Code  *string `json:"optimizedCode"`
	Error *string `json:"error"`
}

// PassInfo describes one pass in the catalogue.
type PassInfo struct {
	Name    string `json:"name"`
	Insight string `json:"insight"`
}

// Optimize handles a multipart upload.
func (s *Server) Optimize(c *gin.Context) {
	limit := s.limitBody(c, multipartOverhead)
	header, err := c.FormFile("file")
	if tooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": MsgOptimizeFail + err.Error()})
		return
	}
	if err != nil || header.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgNoFile})
		return
	}
	if limit > 0 && header.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("%s%v: %d bytes, limit %d", MsgOptimizeFail, optz.ErrInputTooLarge, header.Size, limit),
		})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgReadFailed + err.Error()})
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgReadFailed + err.Error()})
		return
	}
	code := string(raw)

	res, err := s.pipeline.Optimize(c.Request.Context(), code)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": MsgOptimizeFail + err.Error()})
		return
	}

	c.JSON(http.StatusOK, OptimizeResponse{
		RunID:        res.RunID,
		Language:     res.Language.String(),
		OriginalCode: code,
		Code:         res.Code,
		Before:       res.Before,
		After:        res.After,
		Timings:      res.Timings,
		Insights:     res.Insights,
	})
}

// OptimizeEdited handles a plain-text body and returns only the new text.
func (s *Server) OptimizeEdited(c *gin.Context) {
	s.limitBody(c, 0)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		msg := MsgOptimizeFail + err.Error()
		c.JSON(statusFor(err), EditedResponse{Error: &msg})
		return
	}

	res, err := s.pipeline.Optimize(c.Request.Context(), string(raw))
	if err != nil {
		msg := MsgOptimizeFail + err.Error()
		c.JSON(statusFor(err), EditedResponse{Error: &msg})
		return
	}
	c.JSON(http.StatusOK, EditedResponse{Code: &res.Code})
}

// Download returns the code query parameter as an attachment.
func (s *Server) Download(c *gin.Context) {
	code, hasCode := c.GetQuery("code")
	filename, hasName := c.GetQuery("filename")
	if !hasCode || !hasName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and filename are required"})
		return
	}

	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		name = "optimized.c"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, "application/octet-stream", []byte(code))
}

// Passes lists the passes in execution order.
func (s *Server) Passes(c *gin.Context) {
	passes := s.pipeline.Passes()
	out := make([]PassInfo, len(passes))
	for i, p := range passes {
		out[i] = PassInfo{Name: p.Name(), Insight: p.Insight()}
	}
	c.JSON(http.StatusOK, gin.H{
		"pipeline": s.pipeline.Name(),
		"passes":   out,
	})
}

// Health reports liveness and run counters.
func (s *Server) Health(c *gin.Context) {
	m := s.pipeline.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"runs":      m.Counter(optz.PipelineRunsTotal).Value(),
		"successes": m.Counter(optz.PipelineSuccessesTotal).Value(),
		"failures":  m.Counter(optz.PipelineFailuresTotal).Value(),
		"rejected":  m.Counter(optz.PipelineRejectedTotal).Value(),
	})
}

func statusFor(err error) int {
	var optErr *optz.Error
	switch {
	case errors.Is(err, optz.ErrInputTooLarge), tooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &optErr) && optErr.IsTimeout():
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// limitBody caps the request body at the pipeline's size budget plus
// overhead and returns the budget, zero or less when unlimited.
func (s *Server) limitBody(c *gin.Context, overhead int64) int64 {
	limit := int64(s.pipeline.MaxInputBytes())
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+overhead)
	}
	return limit
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
