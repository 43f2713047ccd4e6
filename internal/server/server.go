package server

import (
	"context"
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nokoro/statement-tracker/internal/common"
	"github.com/nokoro/statement-tracker/internal/export"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/repository"
)

// Extractor is the pipeline as the API sees it.
type Extractor interface {
	Extract(ctx context.Context, path, issuer string) extract.Record
}

// Server wires the statements API.
type Server struct {
	cfg        *common.Config
	statements repository.StatementRepository
	pipeline   Extractor
	exporter   *export.Service
	logger     *slog.Logger
}

func New(cfg *common.Config, statements repository.StatementRepository, pipeline Extractor, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		statements: statements,
		pipeline:   pipeline,
		exporter:   exporter,
		logger:     logger,
	}
}

// Router builds the gin engine with CORS and all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/statements/upload", s.uploadStatement)
		v1.GET("/statements", s.listStatements)
		v1.GET("/statements/export", s.exportStatements)
		v1.GET("/statements/stats/summary", s.statementStats)
		v1.GET("/statements/:id", s.getStatement)
		v1.PATCH("/statements/:id", s.updateStatement)
		v1.POST("/statements/:id/reprocess", s.reprocessStatement)
		v1.DELETE("/statements/:id", s.deleteStatement)
		v1.GET("/statements/:id/file", s.serveStatementFile)
	}
	return r
}
