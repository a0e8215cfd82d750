// Package mockservice emulates the remote document analysis service.
//
// It serves the same routes as the real service so the CLI and the
// end-to-end tests can exercise every response shape the workflow engine
// understands: direct results, async tickets with a later retrieval, text
// extraction with summarize chaining, application errors, incomplete
// responses, and a submission that never answers.
package mockservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Backland-Labs/docflow/internal/analysis"
	"github.com/Backland-Labs/docflow/internal/document"
	"github.com/Backland-Labs/docflow/internal/logger"
)

// FailMode forces the submission routes to misbehave
type FailMode string

const (
	FailNone        FailMode = ""
	FailApplication FailMode = "application"
	FailIncomplete  FailMode = "incomplete"
	FailHang        FailMode = "hang"
)

// ParseFailMode validates a fail mode name
func ParseFailMode(s string) (FailMode, error) {
	switch m := FailMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FailNone, FailApplication, FailIncomplete, FailHang:
		return m, nil
	default:
		return "", fmt.Errorf("unknown fail mode %q", s)
	}
}

// Options configures the mock service
type Options struct {
	// Async makes /upload_regulation answer with an upload_id ticket only
	Async bool
	// Delay is applied before answering a submission
	Delay time.Duration
	// Fail forces submissions to fail in the given way
	Fail FailMode
	// Workers bounds concurrent chunk analysis. Zero selects one per CPU.
	Workers int
}

// Service holds the uploads and clauses the mock has produced
type Service struct {
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	uploads  map[string][]taskPayload
	clauses  []analysis.Clause
	clauseID int64
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New creates a Service
func New(opts Options) *Service {
	return &Service{
		opts:    opts,
		now:     time.Now,
		uploads: make(map[string][]taskPayload),
	}
}

// Handler returns the HTTP routes of the service
func (s *Service) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(logger.GetLogger()))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/", s.handleHome)
	router.POST("/upload", s.handleUpload)
	router.POST("/upload_regulation", s.handleUploadRegulation)
	router.GET("/get_latest_tasks/:uploadId", s.handleLatestTasks)
	router.POST("/summarize", s.handleSummarize)
	router.GET("/extract_clauses", s.handleClauses)

	return router
}

func (s *Service) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Compliance API running (docflow mock service)"})
}

// handleUpload extracts text from the uploaded PDF
func (s *Service) handleUpload(c *gin.Context) {
	file, ok := s.receive(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename": file.Name,
		"text":     extractText(file),
	})
}

// handleUploadRegulation analyzes the uploaded PDF chunk by chunk
func (s *Service) handleUploadRegulation(c *gin.Context) {
	file, ok := s.receive(c)
	if !ok {
		return
	}

	tasks, err := s.analyze(c.Request.Context(), file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Analysis failed: %v", err)})
		return
	}

	uploadID := uuid.NewString()
	s.mu.Lock()
	s.uploads[uploadID] = tasks
	s.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"upload_id": uploadID,
		"file":      file.Name,
		"pages":     file.Pages,
		"tasks":     len(tasks),
	}).Info("Stored analyzed tasks")

	if s.opts.Async {
		c.JSON(http.StatusAccepted, gin.H{"upload_id": uploadID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_id": uploadID, "analyzed_tasks": tasks})
}

func (s *Service) handleLatestTasks(c *gin.Context) {
	uploadID := c.Param("uploadId")

	s.mu.Lock()
	tasks, ok := s.uploads[uploadID]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No analysis found for upload id %s", uploadID)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyzed_tasks": tasks})
}

type summarizeRequest struct {
	Text string `json:"text"`
}

func (s *Service) handleSummarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}

	summaries := summarize(req.Text)
	for _, summary := range summaries {
		s.storeClause(summary)
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (s *Service) handleClauses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clauses": s.Clauses()})
}

// Clauses returns the stored clauses, newest first
func (s *Service) Clauses() []analysis.Clause {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]analysis.Clause, len(s.clauses))
	copy(out, s.clauses)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// storeClause records a summary once; duplicates are skipped
func (s *Service) storeClause(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.clauses {
		if existing.ClauseText == text {
			return
		}
	}
	s.clauseID++
	s.clauses = append(s.clauses, analysis.Clause{
		ID:         s.clauseID,
		ClauseText: text,
		DateAdded:  s.now().Format("2006-01-02 15:04:05"),
	})
}

// receive reads the multipart file, applies the configured delay and fail
// mode, and writes the error response itself when it returns false
func (s *Service) receive(c *gin.Context) (*document.File, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return nil, false
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return nil, false
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Upload error: %v", err)})
		return nil, false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Upload error: %v", err)})
		return nil, false
	}

	file := document.New(filepath.Base(header.Filename), data)
	if file.Pages == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Extraction error: the file is not a readable PDF"})
		return nil, false
	}

	if err := s.wait(c.Request.Context()); err != nil {
		return nil, false
	}

	switch s.opts.Fail {
	case FailApplication:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis backend unavailable"})
		return nil, false
	case FailIncomplete:
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return nil, false
	case FailHang:
		<-c.Request.Context().Done()
		return nil, false
	}

	return file, true
}

// wait sleeps for the configured delay unless the client goes away first
func (s *Service) wait(ctx context.Context) error {
	if s.opts.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.opts.Delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Debug("Client went away while the mock service was delaying")
		}
		return ctx.Err()
	}
}
