package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mindfold/mindfold-backend/internal/data/graph"
)

type HealthHandler struct {
	graph *graph.Store
	db    *gorm.DB
}

func NewHealthHandler(store *graph.Store, db *gorm.DB) *HealthHandler {
	return &HealthHandler{graph: store, db: db}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	deps := gin.H{
		"graph":    h.graph != nil && h.graph.Available(),
		"postgres": false,
	}
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			deps["postgres"] = sqlDB.PingContext(c.Request.Context()) == nil
		}
	}
	status := http.StatusOK
	for _, ok := range deps {
		if ok != true {
			status = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "deps": deps})
}
