// Package middleware provides HTTP middleware for the Gin router: tenant
// extraction and idempotency-key enforcement.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	TenantIDKey = "tenant_id"
	RegionIDKey = "region_id"

	tenantHeader = "X-Tenant-ID"
	regionHeader = "X-Region-ID"
)

// RequireTenant extracts the caller's tenant (and region, if present) from
// request headers. Every multi-tenant operation is namespaced by these, so
// a missing tenant header is rejected outright rather than defaulted.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + tenantHeader + " header"})
			c.Abort()
			return
		}
		c.Set(TenantIDKey, tenantID)
		c.Set(RegionIDKey, c.GetHeader(regionHeader))
		c.Next()
	}
}

func GetTenantID(c *gin.Context) string {
	v, _ := c.Get(TenantIDKey)
	s, _ := v.(string)
	return s
}

func GetRegionID(c *gin.Context) string {
	v, _ := c.Get(RegionIDKey)
	s, _ := v.(string)
	return s
}
