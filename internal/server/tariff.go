package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
)

func (s *Server) ListTariffs(c *gin.Context) {
	resp, err := s.tariffSvc.List(c.Request.Context(), c.Param("country"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertTariff(c *gin.Context) {
	var req tariffdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CountryCode = c.Param("country")

	resp, err := s.tariffSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) LookupTariff(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		AbortWithError(c, newValidationError("code", "required", "code is required"))
		return
	}

	resp, err := s.tariffSvc.Lookup(c.Request.Context(), c.Param("country"), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
