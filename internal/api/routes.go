package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"upgrade-arbitration/backend/internal/ai"
	"upgrade-arbitration/backend/internal/arbiter"
	"upgrade-arbitration/backend/internal/policy"
	"upgrade-arbitration/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath               string
	PolicyPath           string
	AllowedOrigins       []string
	SilentDB             bool
	AIConfig             ai.Config
	DisableAI            bool
	IncludeFallbackOffer bool
}

// Server wires HTTP handlers with the arbitration engine, policy store,
// and audit persistence.
type Server struct {
	db              *store.Database
	policies        *policy.Store
	engine          *arbiter.Engine
	heuristicEngine *arbiter.Engine
	notifier        *DecisionNotifier
	validate        *validator.Validate
	allowedOrigins  []string
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	policies := policy.Load(cfg.PolicyPath)

	heuristic := arbiter.HeuristicPlanner{}
	planner := arbiter.Planner(heuristic)
	if cfg.DisableAI {
		logrus.Info("reasoning planner disabled via configuration")
	} else {
		client, err := ai.NewPlannerClient(cfg.AIConfig)
		switch {
		case err == nil:
			planner = ai.WithFallback(client, heuristic)
		case errors.Is(err, ai.ErrDisabled):
			logrus.Info("reasoning planner not configured, using heuristic plans")
		default:
			return nil, fmt.Errorf("reasoning planner: %w", err)
		}
	}

	return &Server{
		db:              db,
		policies:        policies,
		engine:          arbiter.NewEngine(planner, policies, cfg.IncludeFallbackOffer),
		heuristicEngine: arbiter.NewEngine(heuristic, policies, cfg.IncludeFallbackOffer),
		notifier:        NewDecisionNotifier(),
		validate:        validator.New(),
		allowedOrigins:  cfg.AllowedOrigins,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router builds the Gin router with all API routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) > 0 {
		corsCfg.AllowOrigins = s.allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsCfg))

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/arbitrate", s.handleArbitrate)
		apiGroup.POST("/arbitrate/suppress", s.handleSuppress)
		apiGroup.GET("/decisions", s.handleListDecisions)
		apiGroup.GET("/decisions/:run_id", s.handleGetDecision)
		apiGroup.GET("/policies", s.handlePolicies)
		apiGroup.GET("/health", s.handleHealth)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/decisions", s.handleDecisionSocket)

	return router
}

// handleArbitrate runs one arbitration. Contract violations (empty
// recommended cabins, out-of-range scores, negative prices) are rejected
// with 400 before the engine is invoked.
func (s *Server) handleArbitrate(c *gin.Context) {
	var req ArbitrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid payload: %v", err)})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("contract violation: %v", err)})
		return
	}

	engine := s.engine
	if req.ForceHeuristic {
		engine = s.heuristicEngine
	}

	decision, err := engine.Arbitrate(c.Request.Context(), req.toInput())
	if err != nil {
		if errors.Is(err, arbiter.ErrNoOptions) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	dto := s.persistAndBroadcast(req.Customer.CustomerID, req.Flight.FlightNumber, decision)
	c.JSON(http.StatusOK, dto)
}

// handleSuppress records the terminal no-offer decision for an ineligible
// customer or flight.
func (s *Server) handleSuppress(c *gin.Context) {
	var req SuppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid payload: %v", err)})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("contract violation: %v", err)})
		return
	}

	decision := s.engine.SuppressOffer(req.Reason)
	dto := s.persistAndBroadcast(req.Customer.CustomerID, req.Flight.FlightNumber, decision)
	c.JSON(http.StatusOK, dto)
}

func (s *Server) persistAndBroadcast(customerID, flightNumber string, decision arbiter.Decision) DecisionDTO {
	record := newDecisionRecord(uuid.NewString(), customerID, flightNumber, decision)
	if err := s.db.SaveDecision(record); err != nil {
		logrus.WithError(err).WithField("run_id", record.RunID).Error("persist decision audit record")
	}

	dto := DecisionDTO{RunID: record.RunID, Decision: decision, CreatedAt: record.CreatedAt}
	s.notifier.Broadcast(DecisionEvent{Type: "decision", RunID: record.RunID, Decision: &dto})
	return dto
}

func (s *Server) handleListDecisions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := s.db.ListDecisions(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]DecisionRecordDTO, 0, len(records))
	for _, record := range records {
		items = append(items, recordToDTO(record))
	}
	c.JSON(http.StatusOK, DecisionListResponse{Items: items, Total: total})
}

func (s *Server) handleGetDecision(c *gin.Context) {
	record, err := s.db.GetDecision(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
		return
	}
	c.JSON(http.StatusOK, recordToDTO(*record))
}

func (s *Server) handlePolicies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"policies":     s.policies.Policies(),
		"segment_caps": s.policies.SegmentCaps(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleDecisionSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.notifier.Register(conn)
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
