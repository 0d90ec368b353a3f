// Package httpapi is the REST surface. Handlers bind and validate
// requests once at the boundary, then hand plain values to the domain
// services and map their typed failures onto HTTP statuses.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"thepresent-be/internal/config"
	"thepresent-be/internal/media"
	"thepresent-be/internal/order"
	"thepresent-be/internal/product"
	"thepresent-be/internal/user"
)

type Server struct {
	engine   *gin.Engine
	users    user.Service
	products product.Service
	orders   order.Service
	store    media.Store
	issuer   *user.TokenIssuer
	limiter  *Limiter
}

func NewServer(
	cfg *config.Config,
	users user.Service,
	products product.Service,
	orders order.Service,
	store media.Store,
	issuer *user.TokenIssuer,
) *Server {
	r := gin.New()

	s := &Server{
		engine:   r,
		users:    users,
		products: products,
		orders:   orders,
		store:    store,
		issuer:   issuer,
		limiter:  NewLimiter(rate.Limit(10), 20),
	}

	corsCfg := cors.DefaultConfig()
	if cfg.AllowedOrigin != "" {
		corsCfg.AllowOrigins = []string{cfg.AllowedOrigin}
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")

	r.Use(gin.Recovery(), s.requestLogger(), cors.New(corsCfg), s.limiter.Middleware())
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// Close stops background work owned by the server.
func (s *Server) Close() { s.limiter.Close() }

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.health)

	api := s.engine.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.GET("/me", s.authenticate(AuthRequired), s.me)

	products := api.Group("/products")
	products.GET("", s.authenticate(AuthOptional), s.listProducts)
	products.GET(":id", s.authenticate(AuthOptional), s.getProduct)
	products.POST("", s.authenticate(AuthRequired), s.requireAdmin(), s.createProduct)
	products.PUT(":id", s.authenticate(AuthRequired), s.requireAdmin(), s.updateProduct)
	products.DELETE(":id", s.authenticate(AuthRequired), s.requireAdmin(), s.deleteProduct)

	orders := api.Group("/orders", s.authenticate(AuthRequired))
	orders.POST("", s.createOrder)
	orders.GET("/my-orders", s.myOrders)
	orders.GET("/all", s.requireAdmin(), s.allOrders)
	orders.GET(":id", s.getOrder)
	orders.PATCH(":id/status", s.requireAdmin(), s.updateOrderStatus)

	upload := api.Group("/upload", s.authenticate(AuthRequired), s.requireAdmin())
	upload.POST("/image", s.uploadImage)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "The Present API"})
}
