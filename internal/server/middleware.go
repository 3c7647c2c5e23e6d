package server

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smallbiznis/recurflow/internal/actor"
	"go.uber.org/zap"
)

// Actor headers set by the edge proxy after authentication. Requests without
// either header are treated as internal workers.
const (
	headerUserID    = "X-User-Id"
	headerAPIUserID = "X-Api-User-Id"
	headerRequestID = "X-Request-Id"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurflow_http_requests_total",
		Help: "HTTP requests, by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recurflow_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RequestID tags every request with a correlation id, honoring one passed by
// the edge proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// actorFrom resolves the acting party for lifecycle operations from the
// authenticated headers. A user id wins over an API user id.
func actorFrom(c *gin.Context) actor.Actor {
	if raw := c.GetHeader(headerUserID); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil && id != 0 {
			return actor.User(id)
		}
	}
	if raw := c.GetHeader(headerAPIUserID); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil && id != 0 {
			return actor.APIUser(id)
		}
	}
	return actor.Internal()
}
