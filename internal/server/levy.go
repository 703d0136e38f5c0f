package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
)

func (s *Server) ListLevies(c *gin.Context) {
	var query struct {
		Active string `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.levySvc.List(c.Request.Context(), levydomain.ListRequest{
		CountryCode: c.Param("country"),
		ActiveOnly:  active != nil && *active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateLevy(c *gin.Context) {
	var req levydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CountryCode = c.Param("country")

	resp, err := s.levySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateLevy(c *gin.Context) {
	var req levydomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CountryCode = c.Param("country")
	req.Code = strings.TrimSpace(c.Param("code"))

	resp, err := s.levySvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DisableLevy(c *gin.Context) {
	resp, err := s.levySvc.Disable(c.Request.Context(), c.Param("country"), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
