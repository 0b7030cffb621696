package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500
)

// RequestLogger is a gin middleware that logs requests using zerolog.
// Status polls are logged at debug level; the shell polls them continuously.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		evt := log.Info()
		switch {
		case status >= statusErrorThreshold:
			evt = log.Error()
		case status >= statusWarnThreshold:
			evt = log.Warn()
		case strings.HasPrefix(path, "/job-status"):
			evt = log.Debug()
		}

		if raw != "" {
			path = path + "?" + raw
		}

		evt.
			Int("status", status).
			Str("method", method).
			Str("path", path).
			Dur("latency", latency).
			Int("bytes", size).
			Msg("http request completed")
	}
}
