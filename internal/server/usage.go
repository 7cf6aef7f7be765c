package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
)

func (s *Server) getMonthlyUsage(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	snapshot, err := s.costSvc.GetMonthlyUsage(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) getUsageWarnings(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	warnings, err := s.costSvc.CheckWarnings(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if warnings == nil {
		warnings = []costdomain.Warning{}
	}
	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

func (s *Server) listUsageOperations(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	pageSize := 0
	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		pageSize = parsed
	}

	resp, err := s.costSvc.ListOperations(c.Request.Context(), costdomain.ListOperationsRequest{
		UserID:    userID,
		PageToken: c.Query("page_token"),
		PageSize:  int32(pageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
