package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const contextOrgIDKey = "org_id"

// OrgScope resolves the tenant from the route. Authentication happens upstream.
func OrgScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := parseSnowflakeID(c.Param("org_id"))
		if err != nil {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
			return
		}
		c.Set(contextOrgIDKey, orgID)
		c.Next()
	}
}

func orgIDFrom(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextOrgIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}
