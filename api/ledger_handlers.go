package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secure-voting/models"
)

// BlockResponse is the public view of one ledger block.
type BlockResponse struct {
	Index        uint64              `json:"index"`
	Timestamp    int64               `json:"timestamp"`
	Data         string              `json:"data"`
	Payload      *models.VotePayload `json:"payload,omitempty"`
	PreviousHash string              `json:"previousHash"`
	Hash         string              `json:"hash"`
	Nonce        uint64              `json:"nonce"`
	Difficulty   uint8               `json:"difficulty"`
}

func (s *Server) handleLedgerStats(c *gin.Context) {
	stats, err := s.ledger.Statistics(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to read ledger statistics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "statistics": stats})
}

func (s *Server) handleLedgerVerify(c *gin.Context) {
	valid, err := s.ledger.VerifyChainIntegrity(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to verify ledger", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isValid": valid})
}

func (s *Server) handleLedgerBlocks(c *gin.Context) {
	blocks := s.ledger.Blocks()

	resp := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		block := BlockResponse{
			Index:        b.Index,
			Timestamp:    b.Timestamp,
			Data:         b.Data,
			PreviousHash: b.PreviousHash,
			Hash:         b.Hash,
			Nonce:        b.Nonce,
			Difficulty:   b.Difficulty,
		}
		if b.Index > 0 {
			var payload models.VotePayload
			if err := json.Unmarshal([]byte(b.Data), &payload); err == nil {
				block.Payload = &payload
			}
		}
		resp = append(resp, block)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(resp), "blocks": resp})
}

func (s *Server) handleLedgerResync(c *gin.Context) {
	report, err := s.resyncer.Resync(c.Request.Context(), s.resyncBatch)
	if err != nil {
		s.internalError(c, "ledger resync failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

func (s *Server) internalError(c *gin.Context, message string, err error) {
	s.logger.Error(message,
		zap.String("request_id", RequestIDFrom(c.Request.Context())),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": message,
		"error":   "InternalError",
	})
}
