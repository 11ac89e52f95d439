// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouteOptions configures route registration.
type RouteOptions struct {
	// RateLimitRPS limits POST /v1/proposals. Zero disables limiting.
	RateLimitRPS float64

	// RateBurst is the limiter burst size.
	RateBurst int
}

// RegisterRoutes registers all proposal routes with the router.
//
// # Description
//
// Registers all /v1/proposals/* endpoints with the given Gin router group.
//
// # Inputs
//
//   - rg: Gin router group (typically /v1)
//   - handlers: The handlers instance
//   - opts: Route options
//
// # Endpoints
//
//	POST /v1/proposals               - Build and propose a change set
//	GET  /v1/proposals/current       - Current change set
//	POST /v1/proposals/accept        - Accept all ({"confirmed": bool})
//	POST /v1/proposals/reject        - Reject all (revert or discard)
//	POST /v1/proposals/files/accept  - Accept one file ({"path"})
//	POST /v1/proposals/files/reject  - Reject one file ({"path"})
//	GET  /v1/proposals/diff          - Unified diff of the current change set
//	GET  /v1/proposals/history       - Lifecycle journal
//	GET  /v1/proposals/events        - Websocket progress stream
//	GET  /v1/proposals/health        - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, opts RouteOptions) {
	proposals := rg.Group("/proposals")
	{
		proposals.POST("", RateLimit(opts.RateLimitRPS, opts.RateBurst), handlers.HandlePropose)
		proposals.GET("/current", handlers.HandleCurrent)

		proposals.POST("/accept", handlers.HandleAccept)
		proposals.POST("/reject", handlers.HandleReject)

		files := proposals.Group("/files")
		{
			files.POST("/accept", handlers.HandleAcceptFile)
			files.POST("/reject", handlers.HandleRejectFile)
		}

		proposals.GET("/diff", handlers.HandleDiff)
		proposals.GET("/history", handlers.HandleHistory)
		proposals.GET("/events", handlers.HandleEvents)
		proposals.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the Gin engine for the proposal service with recovery,
// tracing and request metrics. metrics, when non-nil, is served at /metrics.
func NewRouter(handlers *Handlers, opts RouteOptions, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-proposals"))
	router.Use(Instrument())

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers, opts)
	return router
}
