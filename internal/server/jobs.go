package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

type startJobRequest struct {
	GroupByCompany       *bool `json:"group_by_company"`
	GroupByIndustry      *bool `json:"group_by_industry"`
	GroupByRelationships *bool `json:"group_by_relationships"`
	UseDeepAnalysis      bool  `json:"use_deep_analysis"`
	MaxGroups            int   `json:"max_groups"`
}

// options merges the request over the defaults; absent booleans keep
// the analysis enabled.
func (r startJobRequest) options() groupingdomain.Options {
	opts := groupingdomain.DefaultOptions()
	if r.GroupByCompany != nil {
		opts.GroupByCompany = *r.GroupByCompany
	}
	if r.GroupByIndustry != nil {
		opts.GroupByIndustry = *r.GroupByIndustry
	}
	if r.GroupByRelationships != nil {
		opts.GroupByRelationships = *r.GroupByRelationships
	}
	opts.UseDeepAnalysis = r.UseDeepAnalysis
	if r.MaxGroups > 0 {
		opts.MaxGroups = r.MaxGroups
	}
	return opts
}

func (s *Server) startGroupingJob(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req startJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	resp, err := s.jobSvc.StartAIGroupingJob(c.Request.Context(), userID, req.options())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":                     resp.JobID,
		"status":                     resp.Status,
		"estimated_duration_seconds": resp.EstimatedDurationSeconds,
	})
}

func (s *Server) getGroupingJob(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	job, err := s.jobSvc.GetJobStatus(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listGroupingJobs(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	jobs, err := s.jobSvc.ListJobs(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// estimateGrouping returns the pre-flight cost projection and the
// affordability verdict without starting a job.
func (s *Server) estimateGrouping(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req startJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	level, err := s.subSvc.GetLevel(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	estimate := s.groupEng.EstimateOperationCost(level, req.options())

	aff, err := s.costSvc.CanAffordOperation(c.Request.Context(), userID, estimate.EstimatedCost, int64(estimate.FeaturesCount))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"estimate":      estimate,
		"affordability": aff,
	})
}
