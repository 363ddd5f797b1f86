package http

import (
	"time"

	"github.com/gin-gonic/gin"

	httpH "github.com/mindfold/mindfold-backend/internal/http/handlers"
	httpMW "github.com/mindfold/mindfold-backend/internal/http/middleware"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	RequestTimeout time.Duration

	RetrieveHandler *httpH.RetrieveHandler
	IngestHandler   *httpH.IngestHandler
	ReviewHandler   *httpH.ReviewHandler
	GraphHandler    *httpH.GraphHandler
	ChatHandler     *httpH.ChatHandler
	QuoteHandler    *httpH.QuoteHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.RequestTimeout > 0 {
		api.Use(httpMW.RequestTimeout(cfg.RequestTimeout))
	}
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.RetrieveHandler != nil {
		api.POST("/retrieve", cfg.RetrieveHandler.Retrieve)
		api.POST("/evidence-subgraph", cfg.RetrieveHandler.EvidenceSubgraph)
		api.POST("/graphrag-context", cfg.RetrieveHandler.GraphRAGContext)
	}

	if cfg.IngestHandler != nil {
		api.POST("/ingest/lecture", cfg.IngestHandler.IngestLecture)
		api.GET("/ingest/runs/:id", cfg.IngestHandler.GetRun)
		api.POST("/ingest/runs/:id/undo", cfg.IngestHandler.UndoRun)
	}

	if cfg.ReviewHandler != nil {
		api.GET("/relationships/proposed", cfg.ReviewHandler.ListProposed)
		api.POST("/relationships/accept", cfg.ReviewHandler.Accept)
		api.POST("/relationships/reject", cfg.ReviewHandler.Reject)
		api.POST("/relationships/edit", cfg.ReviewHandler.Edit)
	}

	if cfg.GraphHandler != nil {
		api.GET("/graph/overview", cfg.GraphHandler.Overview)
		api.POST("/graph/branches/fork", cfg.GraphHandler.ForkBranch)
		api.POST("/concepts/:id/archive", cfg.GraphHandler.ArchiveConcept)
		api.POST("/concepts/merge", cfg.GraphHandler.MergeConcepts)
	}

	if cfg.QuoteHandler != nil {
		api.POST("/quotes", cfg.QuoteHandler.Capture)
		api.GET("/quotes/:id", cfg.QuoteHandler.Get)
	}

	if cfg.ChatHandler != nil {
		api.POST("/chat/sessions", cfg.ChatHandler.CreateSession)
		api.GET("/chat/sessions", cfg.ChatHandler.ListSessions)
		api.PATCH("/chat/sessions/:id", cfg.ChatHandler.RenameSession)
		api.DELETE("/chat/sessions/:id", cfg.ChatHandler.DeleteSession)
		api.GET("/chat/sessions/:id/messages", cfg.ChatHandler.History)
		api.POST("/chat/sessions/:id/messages", cfg.ChatHandler.SendMessage)
		api.POST("/chat/sessions/:id/stream", cfg.ChatHandler.StreamMessage)

		api.POST("/notes/digests", cfg.ChatHandler.GenerateDigest)
		api.GET("/notes/digests", cfg.ChatHandler.ListDigests)
		api.GET("/notes/digests/:id", cfg.ChatHandler.GetDigest)

		api.POST("/voice/sessions", cfg.ChatHandler.StartVoice)
		api.POST("/voice/sessions/:id/end", cfg.ChatHandler.EndVoice)
		api.GET("/voice/sessions", cfg.ChatHandler.ListVoice)
	}

	return r
}
