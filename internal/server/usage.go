package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/smallbiznis/footprint/internal/usage/domain"
	"github.com/smallbiznis/footprint/pkg/db/pagination"
)

type updateMetricsRequest struct {
	Email   string         `json:"email"`
	Metrics map[string]any `json:"metrics"`
}

func (s *Server) IngestUsage(c *gin.Context) {
	var req usagedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if d := strings.TrimSpace(req.Domain); d != "" {
		c.Set("usage_domain", d)
	}

	event, err := s.usagesvc.Ingest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (s *Server) QueryUsage(c *gin.Context) {
	start, end, err := parseDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.usagesvc.Query(c.Request.Context(), usagedomain.QueryRequest{
		Email:     queryValue(c, "email"),
		StartDate: start,
		EndDate:   end,
		Domain:    queryValue(c, "domain"),
		Source:    queryValue(c, "source"),
		Region:    queryValue(c, "region"),
		Timeframe: queryValue(c, "timeframe"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UsageHistory(c *gin.Context) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page", "invalid_page", "page and limit must be integers"))
		return
	}
	start, end, err := parseDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.usagesvc.History(c.Request.Context(), usagedomain.HistoryRequest{
		Page:      page,
		Email:     queryValue(c, "email"),
		Domain:    queryValue(c, "domain"),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UsageStats(c *gin.Context) {
	start, end, err := parseDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.usagesvc.Stats(c.Request.Context(), usagedomain.StatsRequest{
		Email:     queryValue(c, "email"),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetUsage(c *gin.Context) {
	event, err := s.usagesvc.Get(c.Request.Context(), usagedomain.GetRequest{
		ID:    c.Param("id"),
		Email: queryValue(c, "email"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) DeleteUsage(c *gin.Context) {
	err := s.usagesvc.Delete(c.Request.Context(), usagedomain.GetRequest{
		ID:    c.Param("id"),
		Email: queryValue(c, "email"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) UpdateUsageMetrics(c *gin.Context) {
	var req updateMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = queryValue(c, "email")
	}

	event, err := s.usagesvc.UpdateMetrics(c.Request.Context(), usagedomain.UpdateMetricsRequest{
		ID:      c.Param("id"),
		Email:   email,
		Metrics: req.Metrics,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
