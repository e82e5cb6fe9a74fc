// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/VA7DBI/transcribeQueue/config"
	"github.com/VA7DBI/transcribeQueue/docs"
	"github.com/VA7DBI/transcribeQueue/metrics"
	"github.com/VA7DBI/transcribeQueue/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
)

// @title           Transcription Queue Service
// @version         1.0
// @description     Queues audio, video and link transcription jobs and runs them under a concurrency ceiling.
// @host           localhost:8080
// @BasePath       /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if cfg.API.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.API.SwaggerHost
	}
	docs.SwaggerInfo.BasePath = cfg.API.BasePath

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := NewJobService(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize job service: %v", err)
	}
	defer service.Close()

	authMiddleware, err := middleware.NewAuthMiddleware(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize auth middleware: %v", err)
	}
	defer authMiddleware.Close()

	r := gin.Default()
	setupRouter(r, cfg, service, authMiddleware.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server stopped err=%v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown failed err=%v", err)
	}
}

// setupRouter registers the job API behind auth and the public endpoints.
func setupRouter(r *gin.Engine, cfg *config.Config, service *JobService, auth gin.HandlerFunc) {
	r.MaxMultipartMemory = 32 << 20

	jobs := r.Group("/", auth)
	jobs.POST("/jobs", service.SubmitHandler)
	jobs.GET("/jobs", service.ListHandler)
	jobs.DELETE("/jobs", service.ClearHandler)
	jobs.GET("/jobs/:id", service.GetHandler)
	jobs.DELETE("/jobs/:id", service.RemoveHandler)
	jobs.GET("/events", service.EventsHandler)

	// These endpoints remain public
	r.GET("/health", healthCheck)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// @Summary     Health check endpoint
// @Description Get API health status
// @Tags        health
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /health [get]
func healthCheck(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	metrics.MemoryUsage.WithLabelValues("allocated").Set(float64(memStats.Alloc))
	metrics.MemoryUsage.WithLabelValues("system").Set(float64(memStats.Sys))
	metrics.MemoryUsage.WithLabelValues("heap").Set(float64(memStats.HeapInuse))

	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
