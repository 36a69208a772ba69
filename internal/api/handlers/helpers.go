package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetTenantID reads the tenant set by the surrounding application's auth
// layer (out of scope here), falling back to the X-Tenant-ID header.
func GetTenantID(c *fiber.Ctx) int64 {
	if v, ok := c.Locals("tenant_id").(string); ok {
		tenantID, _ := strconv.Atoi(v)
		return int64(tenantID)
	}
	tenantID, _ := strconv.Atoi(c.Get("X-Tenant-ID"))
	return int64(tenantID)
}
