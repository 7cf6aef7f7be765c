package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
)

func (s *Server) createContact(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req contactdomain.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	contact, err := s.contactSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (s *Server) listContacts(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	contacts, err := s.contactSvc.GetContacts(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (s *Server) listGroups(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	groups, err := s.contactSvc.ListGroups(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

type setSubscriptionRequest struct {
	Level subscriptiondomain.Level `json:"level"`
}

func (s *Server) setSubscription(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req setSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.subSvc.SetLevel(c.Request.Context(), userID, req.Level); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": req.Level})
}

func (s *Server) getSubscription(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	level, err := s.subSvc.GetLevel(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"level":  level,
		"limits": subscriptiondomain.LimitsFor(level),
	})
}
