package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RecalculateShipment(c *gin.Context) {
	shipmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.prorationSvc.RecalculateShipment(c.Request.Context(), orgIDFrom(c), shipmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
