package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mediaengine/internal/job"
)

type startJobRequest struct {
	JobType        string `json:"jobType"`
	URL            string `json:"url"`
	Cookies        string `json:"cookies"`
	Format         string `json:"format"`
	FFmpegLocation string `json:"ffmpeg_location"`
}

type startJobResponse struct {
	JobID string `json:"jobId"`
}

type API struct {
	manager *job.Manager
}

func NewAPI(manager *job.Manager) *API {
	return &API{manager: manager}
}

// RegisterRoutes registers the engine's endpoints on the provided gin engine.
// The path-parameter job-status form is kept alongside the query form for
// shell compatibility.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.POST("/start-job", a.StartJob)
	router.GET("/job-status", a.JobStatus)
	router.GET("/job-status/:jobId", a.JobStatus)
	router.GET("/download/:jobId", a.Download)
	router.POST("/cancel-job", a.CancelJob)
	router.GET("/get-formats", a.GetFormats)
}

// StartJob validates the request and kicks off the pipeline in the background.
func (a *API) StartJob(c *gin.Context) {
	var req startJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	kind, ok := job.ParseKind(req.JobType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job type: " + req.JobType})
		return
	}

	created, err := a.manager.Submit(job.Request{
		Kind:           kind,
		URL:            req.URL,
		Cookies:        req.Cookies,
		Format:         req.Format,
		FFmpegLocation: req.FFmpegLocation,
	})
	if err != nil {
		if errors.Is(err, job.ErrShuttingDown) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine is shutting down"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("job_id", created.ID).Str("kind", string(created.Kind)).Msg("job started")
	c.JSON(http.StatusOK, startJobResponse{JobID: created.ID})
}

// JobStatus returns the job snapshot. Accepts the ID as ?jobId=… or as a
// trailing path parameter.
func (a *API) JobStatus(c *gin.Context) {
	id := c.Param("jobId")
	if id == "" {
		id = c.Query("jobId")
	}
	snapshot, ok := a.manager.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Download streams the completed artifact and reclaims the job afterwards.
func (a *API) Download(c *gin.Context) {
	id := c.Param("jobId")
	snapshot, ok := a.manager.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	}
	if snapshot.Status != job.StatusCompleted || snapshot.ArtifactPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "job artifact not ready", "status": snapshot.Status})
		return
	}
	info, err := os.Stat(snapshot.ArtifactPath)
	if err != nil {
		log.Error().Str("job_id", id).Err(err).Msg("artifact missing on download")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "artifact missing"})
		return
	}

	c.Header("Content-Type", contentTypeFor(snapshot.Filename))
	c.Header("Content-Length", fmt.Sprintf("%d", info.Size()))
	c.Header("Content-Disposition", contentDisposition(snapshot.Filename))
	c.File(snapshot.ArtifactPath)

	// Stream finished (or the client went away): reclaim the record and its
	// scratch dir either way.
	a.manager.Delete(id)
	log.Info().Str("job_id", id).Str("file", snapshot.Filename).Msg("artifact delivered, job reclaimed")
}

// CancelJob requests cancellation of a queued or running job.
func (a *API) CancelJob(c *gin.Context) {
	id := c.Query("jobId")
	if id == "" {
		var body struct {
			JobID string `json:"jobId"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			id = body.JobID
		}
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobId required"})
		return
	}
	switch err := a.manager.Cancel(id); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
	case errors.Is(err, job.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
	case errors.Is(err, job.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": "job already finished"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetFormats invokes the downloader in metadata mode for the given URL.
func (a *API) GetFormats(c *gin.Context) {
	rawURL := c.Query("url")
	if strings.TrimSpace(rawURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	formats, err := a.manager.ListFormats(c.Request.Context(), rawURL)
	if err != nil {
		log.Warn().Str("url", rawURL).Err(err).Msg("format listing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"formats": formats})
}

func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".zip"):
		return "application/zip"
	case strings.HasSuffix(strings.ToLower(filename), ".mp3"):
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// contentDisposition builds an attachment header with an ASCII fallback plus
// the RFC 5987 UTF-8 form for non-ASCII filenames.
func contentDisposition(filename string) string {
	fallback := asciiFallback(filename)
	encoded := url.PathEscape(filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, encoded)
}

func asciiFallback(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
