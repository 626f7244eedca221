package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/handlers"
	"github.com/egendata/operator/internal/middleware"
	"github.com/egendata/operator/internal/signature"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Message *handlers.MessageHandler
	Account *handlers.AccountHandler
	Client  *handlers.ClientHandler
	Consent *handlers.ConsentHandler
	Data    *handlers.DataHandler
	PDS     *handlers.PDSHandler
	Health  *handlers.HealthHandler
	JWKS    *handlers.JWKSHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	Verifier *signature.Verifier
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
	Logger   *logrus.Logger
}

// SetupRouter configures all API routes
func SetupRouter(h *Handlers, opts Options) *gin.Engine {
	router := gin.New()
	// Domains travel percent-encoded in data paths and must stay one segment.
	router.UseRawPath = true

	router.Use(gin.Recovery(), middleware.CorrelationID(), middleware.RequestLogger(opts.Logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Handler())
	}

	router.GET("/health", h.Health.Health)
	router.GET("/jwks", h.JWKS.JWKS)
	router.GET("/jwks/:kid", h.JWKS.Key)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	byAccountKey := signature.Signed(opts.Verifier, signature.AccountKey)
	byKeyID := signature.Signed(opts.Verifier, signature.KeyID)

	api := router.Group("/api")
	{
		api.GET("", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
		api.POST("", h.Message.Handle)

		// Account routes
		accounts := api.Group("/accounts")
		{
			accounts.POST("", byAccountKey, h.Account.CreateAccount)
			accounts.GET("/:accountId", h.Account.GetAccount)
			accounts.POST("/:accountId/login", h.Account.Login)
		}

		api.POST("/clients", byKeyID, h.Client.RegisterClient)

		// Consent routes
		consents := api.Group("/consents")
		{
			consents.POST("", byAccountKey, h.Consent.Approve)
			consents.POST("/requests", byKeyID, h.Consent.CreateRequest)
			consents.GET("/requests/:id", h.Consent.GetRequest)
		}

		// Data routes; domain and area are optional
		data := api.Group("/data")
		{
			for _, path := range []string{"", "/:domain", "/:domain/:area"} {
				data.GET(path, h.Data.Read)
				data.POST(path, h.Data.Write)
			}
		}

		pds := api.Group("/pds")
		{
			pds.GET("/providers", h.PDS.Providers)
			pds.GET("/:provider/callback", h.PDS.Callback)
		}
	}

	return router
}
