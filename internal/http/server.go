package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// Run serves until the listener fails. The per-request deadline lives in the
// router's timeout middleware; WriteTimeout stays unset so chat streaming is
// not cut off.
func (s *Server) Run(address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
