package http

import "github.com/gin-gonic/gin"

// Module is a unit of HTTP surface (lead routing, search, dead-letter admin)
// mounted by the router at startup.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is handed to each Module during route registration.
// V1 is the rate-limited /api/v1 group; Engine is only for routes that must
// live outside it.
type RouterContext struct {
	Engine *gin.Engine
	V1     *gin.RouterGroup
}
