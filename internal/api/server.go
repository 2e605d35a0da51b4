// Package api exposes the local monitor surface: REST snapshots of gateway
// state and a websocket stream of lifecycle transitions, order events and
// failure messages.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/gateway"
	"github.com/Indemos/Terminal-sub003/pkg/db"
)

// Server wires HTTP endpoints around the event bus and gateway registry.
type Server struct {
	Router   *gin.Engine
	Bus      *events.Bus
	Gateways *gateway.Manager
	Journal  *db.Journal
	Log      *zap.Logger
}

// NewServer builds the monitor server.
func NewServer(bus *events.Bus, gateways *gateway.Manager, journal *db.Journal, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(RateLimitMiddleware(newLimiterPool()))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:   r,
		Bus:      bus,
		Gateways: gateways,
		Journal:  journal,
		Log:      log.Named("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/accounts/:descriptor", s.getAccount)
		api.GET("/orders", s.getOrders)
		api.GET("/fills", s.getFills)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	stats := s.Gateways.Stats()
	c.JSON(http.StatusOK, gin.H{
		"gateways": stats.Total,
		"failures": stats.Failures,
		"by_state": stats.ByState,
	})
}

func (s *Server) getAccount(c *gin.Context) {
	g, err := s.Gateways.Get(c.Param("descriptor"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	acc := g.Account()
	instruments := make([]string, 0, len(acc.Instruments()))
	for name := range acc.Instruments() {
		instruments = append(instruments, name)
	}

	c.JSON(http.StatusOK, gin.H{
		"descriptor":  acc.Descriptor,
		"balance":     acc.Balance,
		"performance": acc.Performance.Value(),
		"state":       g.State(),
		"instruments": instruments,
	})
}

func (s *Server) getOrders(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	rows, err := s.Journal.ListOrders(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) getFills(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	rows, err := s.Journal.ListFills(c.Request.Context(), 1000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router.Run(addr)
}
