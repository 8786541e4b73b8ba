package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secure-voting/blockchain"
	"secure-voting/metrics"
	"secure-voting/models"
	"secure-voting/service"
)

// VotingService is the voting-key protocol exposed over HTTP.
type VotingService interface {
	RequestKey(ctx context.Context, in service.RequestKeyInput) (*service.RequestKeyResult, error)
	VerifyKey(ctx context.Context, in service.VerifyKeyInput) (*service.VerifyKeyResult, error)
	SubmitVote(ctx context.Context, in service.SubmitVoteInput) (*service.SubmitVoteResult, error)
	VerifyVote(ctx context.Context, confirmationKey string, electionID uint) (*service.VoteVerification, error)
	Status(ctx context.Context, email string, electionID uint) (*service.KeyStatusReport, error)
	GetKey(ctx context.Context, email string, electionID uint) (*service.KeyRedisplay, error)
}

// ResultsService tallies election results.
type ResultsService interface {
	CountVotes(ctx context.Context, electionID uint) (*service.VotingResults, error)
}

// Ledger is the read side of the vote ledger.
type Ledger interface {
	Statistics(ctx context.Context) (*blockchain.Statistics, error)
	VerifyChainIntegrity(ctx context.Context) (bool, error)
	Blocks() []models.Block
}

// Resyncer records votes still missing from the ledger.
type Resyncer interface {
	Resync(ctx context.Context, batchSize int) (*blockchain.ResyncReport, error)
}

// Server is the HTTP surface of the voting service.
type Server struct {
	engine      *gin.Engine
	logger      *zap.Logger
	metrics     *metrics.Collector
	voting      VotingService
	results     ResultsService
	ledger      Ledger
	resyncer    Resyncer
	resyncBatch int
}

// NewServer builds the gin engine and registers all routes.
func NewServer(
	logger *zap.Logger,
	collector *metrics.Collector,
	voting VotingService,
	results ResultsService,
	ledger Ledger,
	resyncer Resyncer,
	resyncBatch int,
	trustedProxies []string,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	// ClientIP keys the rate limiter, so forwarding headers are only honored
	// from listed proxies. nil means the remote address is used as is.
	if err := engine.SetTrustedProxies(trustedProxies); err != nil {
		logger.Error("Invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	reqMiddleware := NewRequestMiddleware(logger.With(zap.String("component", "http")))
	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	s := &Server{
		engine:      engine,
		logger:      logger.With(zap.String("handler", "secure_voting")),
		metrics:     collector,
		voting:      voting,
		results:     results,
		ledger:      ledger,
		resyncer:    resyncer,
		resyncBatch: resyncBatch,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "secure-voting"})
	})
	s.engine.GET("/metrics", s.handleMetrics)

	sv := s.engine.Group("/secure-voting")
	sv.POST("/request-key", s.handleRequestKey)
	sv.POST("/verify-key", s.handleVerifyKey)
	sv.POST("/submit-vote", s.handleSubmitVote)
	sv.GET("/verify-vote/:confirmationKey/:electionId", s.handleVerifyVote)
	sv.GET("/status/:email/:electionId", s.handleStatus)
	sv.GET("/get-key/:email/:electionId", s.handleGetKey)
	sv.GET("/results/:electionId", s.handleResults)

	ledger := sv.Group("/ledger")
	ledger.GET("/stats", s.handleLedgerStats)
	ledger.GET("/verify", s.handleLedgerVerify)
	ledger.GET("/blocks", s.handleLedgerBlocks)
	ledger.POST("/resync", s.handleLedgerResync)
}

// Handler returns the HTTP handler for use in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

// respondError writes the error body; internal details are logged, not returned.
func (s *Server) respondError(c *gin.Context, err error) {
	status := service.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("request_id", RequestIDFrom(c.Request.Context())),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"message": service.PublicMessage(err),
		"error":   service.KindOf(err),
	})
}

func (s *Server) respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": message,
		"error":   service.KindValidation,
	})
}
