package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetFactors exposes the emission factor table currently in force.
func (s *Server) GetFactors(c *gin.Context) {
	table := s.factors.Table()
	s.obsMetrics.RecordFactorTableRead(c.Request.Context(), table.Version)
	c.JSON(http.StatusOK, table)
}
