// Package server exposes the query pipeline over HTTP.
package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/henrybloomingdale/clinlit/internal/pipeline"
	"github.com/henrybloomingdale/clinlit/internal/server/respond"
)

// NewRouter constructs the gin engine with middleware and routes.
// The hub, when non-nil, should also be wired into the orchestrator's
// config as its progress sink.
func NewRouter(orch *pipeline.Orchestrator, hub *Hub, log logrus.FieldLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestLogger(log),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type"},
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.OK(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/processQuery", handleProcessQuery(orch))
	api.POST("/analyzeArticle", handleAnalyzeArticle(orch))
	api.POST("/generateSynthesis", handleGenerateSynthesis(orch))
	if hub != nil {
		api.GET("/progress", handleProgress(hub))
	}

	return r
}

func handleProcessQuery(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pipeline.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}

		resp, err := orch.ProcessQuery(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		respond.OK(c, resp)
	}
}

func handleAnalyzeArticle(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pipeline.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}

		resp, err := orch.AnalyzeArticle(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		respond.OK(c, resp)
	}
}

func handleGenerateSynthesis(orch *pipeline.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pipeline.SynthesisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}

		resp, err := orch.GenerateSynthesis(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		respond.OK(c, resp)
	}
}

// handleProgress streams batch progress events as SSE until the client
// disconnects.
func handleProgress(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cancel := hub.Subscribe()
		defer cancel()

		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case p, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent("progress", p)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

func writeError(c *gin.Context, err error) {
	var ve *pipeline.ValidationError
	if errors.As(err, &ve) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", ve.Error())
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal", err.Error())
}
