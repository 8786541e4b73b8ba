package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"secure-voting/service"
)

// RequestKeyRequest is the body of POST /api/voting/request-key.
type RequestKeyRequest struct {
	Email      string `json:"email" binding:"required"`
	ElectionID uint   `json:"electionId" binding:"required"`
}

// VerifyKeyRequest is the body of POST /api/voting/verify-key.
type VerifyKeyRequest struct {
	PrimaryKey string `json:"primaryKey" binding:"required"`
	ElectionID uint   `json:"electionId" binding:"required"`
}

// SubmitVoteRequest is the body of POST /api/voting/submit-vote.
type SubmitVoteRequest struct {
	ConfirmationKey string `json:"confirmationKey" binding:"required"`
	ElectionID      uint   `json:"electionId" binding:"required"`
	CandidateID     uint   `json:"candidateId" binding:"required"`
}

func (s *Server) handleRequestKey(c *gin.Context) {
	var req RequestKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, "email and electionId are required")
		return
	}

	result, err := s.voting.RequestKey(c.Request.Context(), service.RequestKeyInput{
		Email:      req.Email,
		ElectionID: req.ElectionID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   result.Message,
		"keyExpiry": result.KeyExpiry,
	})
}

func (s *Server) handleVerifyKey(c *gin.Context) {
	var req VerifyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, "primaryKey and electionId are required")
		return
	}

	result, err := s.voting.VerifyKey(c.Request.Context(), service.VerifyKeyInput{
		PrimaryKey: req.PrimaryKey,
		ElectionID: req.ElectionID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"confirmationKey":    result.ConfirmationKey,
		"confirmationExpiry": result.ConfirmationExpiry,
		"election":           result.Election,
		"user":               result.User,
	})
}

func (s *Server) handleSubmitVote(c *gin.Context) {
	var req SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, "confirmationKey, electionId and candidateId are required")
		return
	}

	result, err := s.voting.SubmitVote(c.Request.Context(), service.SubmitVoteInput{
		ConfirmationKey: req.ConfirmationKey,
		ElectionID:      req.ElectionID,
		CandidateID:     req.CandidateID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Vote submitted successfully",
		"voteId":           result.VoteID,
		"verificationHash": result.VerificationHash,
		"candidate":        result.Candidate,
		"security":         result.Security,
	})
}

func (s *Server) handleVerifyVote(c *gin.Context) {
	electionID, ok := s.electionParam(c)
	if !ok {
		return
	}

	vote, err := s.voting.VerifyVote(c.Request.Context(), c.Param("confirmationKey"), electionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "vote": vote})
}

func (s *Server) handleStatus(c *gin.Context) {
	electionID, ok := s.electionParam(c)
	if !ok {
		return
	}

	status, err := s.voting.Status(c.Request.Context(), c.Param("email"), electionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

func (s *Server) handleGetKey(c *gin.Context) {
	electionID, ok := s.electionParam(c)
	if !ok {
		return
	}

	key, err := s.voting.GetKey(c.Request.Context(), c.Param("email"), electionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"primaryKey": key.PrimaryKey,
		"keyExpiry":  key.KeyExpiry,
	})
}

func (s *Server) handleResults(c *gin.Context) {
	electionID, ok := s.electionParam(c)
	if !ok {
		return
	}

	results, err := s.results.CountVotes(c.Request.Context(), electionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (s *Server) electionParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("electionId"), 10, 32)
	if err != nil || id == 0 {
		s.respondBadRequest(c, "electionId must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
