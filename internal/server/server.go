package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/auth"
	"github.com/jilaboon/rafit-sub000/internal/booking"
	"github.com/jilaboon/rafit-sub000/internal/classinstance"
	"github.com/jilaboon/rafit-sub000/internal/config"
	"github.com/jilaboon/rafit-sub000/internal/ledger"
	"github.com/jilaboon/rafit-sub000/internal/tenant"

	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers the router exposes.
type Handlers struct {
	Bookings *booking.Handler
	Classes  *classinstance.Handler
	Policies *tenant.Handler
	Ledger   *ledger.Handler
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, h Handlers, db Pinger) *Server {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestLoggingMiddleware(),
		MetricsMiddleware(),
		RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst),
		corsMiddleware(),
	)

	router.GET("/health", Health(db))
	router.GET("/metrics", Metrics())

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/classes", h.Classes.ListClasses)
		protected.GET("/classes/:classID", h.Classes.GetClass)
		protected.POST("/classes/:classID/bookings", h.Bookings.CreateBooking)
		protected.GET("/bookings", h.Bookings.ListBookings)
		protected.GET("/bookings/:bookingID", h.Bookings.GetBooking)
		protected.POST("/bookings/:bookingID/cancel", h.Bookings.CancelBooking)
		protected.GET("/memberships/:membershipID/entries", h.Ledger.ListEntries)
	}

	staff := router.Group("/staff")
	staff.Use(authMiddleware, auth.RequirePermission(auth.PermBookingCheck))
	{
		staff.POST("/bookings/:bookingID/check-in", h.Bookings.CheckIn)
		staff.POST("/bookings/:bookingID/no-show", h.Bookings.MarkNoShow)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequirePermission(auth.PermClassManage))
	{
		admin.POST("/classes", h.Classes.CreateClass)
		admin.GET("/classes/:classID/bookings", h.Bookings.ListClassBookings)
		admin.POST("/classes/:classID/cancel", h.Bookings.CancelClass)
		admin.GET("/tenants/:tenantID/policy", h.Policies.GetPolicy)
		admin.PUT("/tenants/:tenantID/policy", auth.RequirePermission(auth.PermPolicyManage), h.Policies.UpdatePolicy)
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
