package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/timeout"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/civic-reports/internal/reports"
	"github.com/richxcame/civic-reports/internal/reputation"
	"github.com/richxcame/civic-reports/pkg/common"
	"github.com/richxcame/civic-reports/pkg/middleware"
)

// formOverheadBytes is allowed on top of the media limit for the other form fields.
const formOverheadBytes = 1 << 20

type routerDeps struct {
	serviceName    string
	version        string
	corsOrigins    []string
	requestTimeout time.Duration
	maxMediaBytes  int
	sentry         bool
	submitLimit    gin.HandlerFunc

	reports    *reports.Handler
	reputation *reputation.Handler
	checks     map[string]func() error
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()

	// sentry goes first so Recovery can report through the request hub
	if d.sentry {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(
		middleware.CorrelationID(),
		middleware.Recovery(),
		middleware.RequestLogger(d.serviceName),
		middleware.Metrics(d.serviceName),
		middleware.SecurityHeaders(),
	)

	corsConfig := cors.DefaultConfig()
	if len(d.corsOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = d.corsOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(d.serviceName, d.version, d.checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if d.requestTimeout > 0 {
		api.Use(timeout.New(
			timeout.WithTimeout(d.requestTimeout),
			timeout.WithResponse(func(c *gin.Context) {
				common.ErrorResponse(c, http.StatusGatewayTimeout, "request timed out")
			}),
		))
	}

	var submit []gin.HandlerFunc
	if d.submitLimit != nil {
		submit = append(submit, d.submitLimit)
	}
	submit = append(submit,
		middleware.RequireMultipart(),
		middleware.MaxBodySize(int64(d.maxMediaBytes)+formOverheadBytes),
	)
	d.reports.RegisterRoutes(api, submit...)
	if d.reputation != nil {
		d.reputation.RegisterRoutes(api)
	}

	return router
}
