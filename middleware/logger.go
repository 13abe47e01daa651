package middleware

import (
	"time"

	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every HTTP request with its outcome
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		level := logrus.InfoLevel
		if status >= 500 {
			level = logrus.ErrorLevel
		} else if status >= 400 {
			level = logrus.WarnLevel
		}

		fields := logrus.Fields{
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        status,
			"duration_ms":   time.Since(start).Milliseconds(),
			"ip":            c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
			"response_size": c.Writer.Size(),
		}
		if uid := c.GetString(UserIDKey); uid != "" {
			fields["user_id"] = uid
		}
		if entry := Session(c); entry != nil {
			fields["session_id"] = entry.ID
		}

		utils.Log.WithFields(fields).Log(level, "HTTP Request")
	}
}

// ErrorLogger logs errors attached with c.Error and counts them
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			utils.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"type":   err.Type,
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Error("Request error occurred")
			monitoring.ErrorsTotal.WithLabelValues("request", c.FullPath()).Inc()
		}
	}
}
