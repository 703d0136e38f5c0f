package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) PreviewDeclaration(c *gin.Context) {
	declarationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.dutySvc.Preview(c.Request.Context(), orgIDFrom(c), declarationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyDeclaration(c *gin.Context) {
	declarationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.dutySvc.Apply(c.Request.Context(), orgIDFrom(c), declarationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportDeclaration(c *gin.Context) {
	declarationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	raw, err := s.dutySvc.Export(c.Request.Context(), orgIDFrom(c), declarationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="declaration-%s.xlsx"`, declarationID))
	c.Data(http.StatusOK, xlsxContentType, raw)
}
