package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"soundsketch/internal/api"
	"soundsketch/internal/artifacts"
	"soundsketch/internal/config"
	"soundsketch/internal/jobs"
	"soundsketch/internal/logging"
	"soundsketch/internal/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	mimeMIDI     = "audio/midi"
	mimeMusicXML = "application/vnd.recordare.musicxml+xml"
)

// artifactKind maps a wire file_type onto the artifact layout.
type artifactKind struct {
	category artifacts.Category
	ext      string
	mime     string
}

var artifactKinds = map[string]artifactKind{
	"midi":     {category: artifacts.CategoryMIDI, ext: ".mid", mime: mimeMIDI},
	"musicxml": {category: artifacts.CategoryMusicXML, ext: ".musicxml", mime: mimeMusicXML},
}

// apiServer exposes the conversion API over HTTP.
type apiServer struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	artifacts *artifacts.Store
	workflow  *workflow.Manager

	echo     *echo.Echo
	listener net.Listener
}

func newAPIServer(cfg *config.Config, store *jobs.Store, artifactStore *artifacts.Store, wf *workflow.Manager, logger *slog.Logger) *apiServer {
	s := &apiServer{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "api-server"),
		store:     store,
		artifacts: artifactStore,
		workflow:  wf,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	if origins := cfg.Server.CORSOrigins; len(origins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		}))
	}

	e.GET("/health", s.handleHealth)
	e.POST("/api/convert", s.handleConvert)
	e.GET("/api/status/:job_id", s.handleStatus)
	e.GET("/api/download/:job_id/:file_type/:instrument", s.handleDownload)
	e.GET("/api/jobs", s.handleJobs)
	e.DELETE("/api/jobs/:job_id", s.handleDelete)
	e.GET("/api/analysis/:job_id", s.handleAnalysis)

	s.echo = e
	return s
}

// start binds the configured address and serves in the background.
func (s *apiServer) start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.echo.Listener = listener

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.echo.Shutdown(shutdownCtx)
	s.listener = nil
}

// Addr reports the bound address, empty before start.
func (s *apiServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the route tree for in-process tests.
func (s *apiServer) Handler() http.Handler {
	return s.echo
}

func (s *apiServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, api.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *apiServer) handleConvert(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apiError(c, http.StatusBadRequest, "multipart field \"file\" is required")
	}

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	ext := filepath.Ext(filename)
	if !s.cfg.AllowsExtension(ext) {
		return apiError(c, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
	}
	if header.Size > s.cfg.MaxUploadBytes() {
		return apiError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MB upload limit", s.cfg.Server.MaxUploadMB))
	}

	src, err := header.Open()
	if err != nil {
		return apiError(c, http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	jobID := uuid.NewString()
	if _, err := s.artifacts.Put(jobID, artifacts.CategorySource, filename, src); err != nil {
		s.logger.Error("source artifact write failed", logging.Error(err))
		return apiError(c, http.StatusInternalServerError, "could not store upload")
	}

	job, err := s.store.Create(c.Request().Context(), jobID, filename)
	if err != nil {
		_ = s.artifacts.DeleteJob(jobID)
		s.logger.Error("job create failed", logging.Error(err))
		return apiError(c, http.StatusInternalServerError, "could not create job")
	}
	if err := s.artifacts.WriteRecord(job); err != nil {
		s.logger.Warn("job snapshot write failed",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}

	if err := s.workflow.Enqueue(jobID); err != nil {
		if errors.Is(err, workflow.ErrQueueFull) {
			_ = s.store.Delete(c.Request().Context(), jobID)
			_ = s.artifacts.DeleteJob(jobID)
			return apiError(c, http.StatusServiceUnavailable, "conversion queue is full, retry later")
		}
		s.logger.Error("enqueue failed", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return apiError(c, http.StatusInternalServerError, "could not enqueue job")
	}

	s.logger.Info("job accepted",
		logging.String(logging.FieldJobID, jobID),
		logging.String("filename", filename),
		logging.Int("queue_depth", s.workflow.QueueDepth()))
	return c.JSON(http.StatusOK, api.SubmitResponse{
		JobID:   jobID,
		Status:  string(jobs.StatusQueued),
		Message: "conversion job accepted",
	})
}

func (s *apiServer) handleStatus(c echo.Context) error {
	job, err := s.store.Get(c.Request().Context(), c.Param("job_id"))
	if errors.Is(err, jobs.ErrNotFound) {
		return apiError(c, http.StatusNotFound, "job not found")
	}
	if err != nil {
		return apiError(c, http.StatusInternalServerError, "could not load job")
	}
	return c.JSON(http.StatusOK, api.FromJob(job))
}

// handleDownload serves artifacts straight from disk rather than from the
// job record, so files from finished instruments are downloadable while the
// job is still processing.
func (s *apiServer) handleDownload(c echo.Context) error {
	kind, ok := artifactKinds[strings.ToLower(c.Param("file_type"))]
	if !ok {
		return apiError(c, http.StatusBadRequest, "file_type must be midi or musicxml")
	}

	jobID := c.Param("job_id")
	if _, err := s.store.Get(c.Request().Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return apiError(c, http.StatusNotFound, "job not found")
		}
		return apiError(c, http.StatusInternalServerError, "could not load job")
	}

	instrument := c.Param("instrument")
	reader, size, err := s.artifacts.Open(jobID, kind.category, instrument+kind.ext)
	if err != nil {
		if errors.Is(err, artifacts.ErrArtifactNotFound) {
			return apiError(c, http.StatusNotFound, "artifact not found")
		}
		return apiError(c, http.StatusInternalServerError, "could not open artifact")
	}
	defer reader.Close()

	response := c.Response()
	response.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", instrument+kind.ext))
	response.Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	return c.Stream(http.StatusOK, kind.mime, reader)
}

func (s *apiServer) handleJobs(c echo.Context) error {
	limit := defaultListLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apiError(c, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items, err := s.store.List(c.Request().Context(), limit)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, "could not list jobs")
	}
	records := make([]api.JobRecord, 0, len(items))
	for _, job := range items {
		records = append(records, api.FromJob(job))
	}
	return c.JSON(http.StatusOK, api.JobListResponse{Jobs: records, Count: len(records)})
}

func (s *apiServer) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()
	jobID := c.Param("job_id")

	if err := s.store.Delete(ctx, jobID); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			return apiError(c, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrJobProcessing):
			return apiError(c, http.StatusConflict, "job is processing and cannot be deleted")
		default:
			return apiError(c, http.StatusInternalServerError, "could not delete job")
		}
	}
	if err := s.artifacts.DeleteJob(jobID); err != nil {
		s.logger.Warn("artifact cleanup failed",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
	s.logger.Info("job deleted", logging.String(logging.FieldJobID, jobID))
	return c.JSON(http.StatusOK, api.DeleteResponse{JobID: jobID, Message: "job deleted"})
}

func (s *apiServer) handleAnalysis(c echo.Context) error {
	jobID := c.Param("job_id")
	if _, err := s.store.Get(c.Request().Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return apiError(c, http.StatusNotFound, "job not found")
		}
		return apiError(c, http.StatusInternalServerError, "could not load job")
	}

	data, err := s.artifacts.Read(jobID, artifacts.CategoryAnalysis, "features.json")
	if err != nil {
		if errors.Is(err, artifacts.ErrArtifactNotFound) {
			return apiError(c, http.StatusNotFound, "analysis not available for this job")
		}
		return apiError(c, http.StatusInternalServerError, "could not read analysis")
	}
	return c.JSONBlob(http.StatusOK, data)
}

func apiError(c echo.Context, status int, message string) error {
	return c.JSON(status, api.ErrorResponse{Error: message})
}
