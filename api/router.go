package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Bookings *BookingHandler
	Flights  *FlightHandler
	Payments *PaymentHandler
	Promos   *PromoHandler
}

// NewRouter wires every handler behind the shared middleware chain.
func NewRouter(h Handlers, jwtSecret string, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger())
	if len(corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	auth := RequireAuth(jwtSecret)
	admin := RequireAdmin()

	h.Flights.Register(router.Group("/flights"))
	h.Bookings.Register(router.Group("/bookings"), auth, admin)
	h.Payments.Register(router.Group("/payments"), auth, admin)
	h.Promos.Register(router.Group("/promo-codes"), auth, admin)
	return router
}
