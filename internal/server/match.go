package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RunMatcher(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice_id")
	if !ok {
		return
	}
	declarationID, ok := pathID(c, "declaration_id")
	if !ok {
		return
	}

	resp, err := s.matchingSvc.Match(c.Request.Context(), orgIDFrom(c), invoiceID, declarationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMatches(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice_id")
	if !ok {
		return
	}
	declarationID, ok := pathID(c, "declaration_id")
	if !ok {
		return
	}

	resp, err := s.matchingSvc.List(c.Request.Context(), orgIDFrom(c), invoiceID, declarationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteMatch(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.matchingSvc.Delete(c.Request.Context(), orgIDFrom(c), matchID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
