// Package rest provides the HTTP API of the mission control service.
package rest

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"fsl/mission-control/internal/config"
	"fsl/mission-control/internal/mission"
	"fsl/mission-control/internal/pipeline"
	"fsl/mission-control/internal/task"
)

// Server wraps the fiber application and its collaborators.
type Server struct {
	app     *fiber.App
	manager *mission.Manager
	proxy   *mission.ControllerProxy
	caller  *pipeline.Caller
	config  config.ServerConfig
}

// NewServer creates a fully routed server.
func NewServer(cfg config.ServerConfig, manager *mission.Manager, proxy *mission.ControllerProxy, caller *pipeline.Caller) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: errorHandler,
		AppName:      "Mission Control API",
	})

	server := &Server{
		app:     app,
		manager: manager,
		proxy:   proxy,
		caller:  caller,
		config:  cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept,Authorization",
			MaxAge:       86400,
		}))
	}
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.healthz)

	api := s.app.Group("/api")
	api.Get("/config/defaults", s.getDefaults)
	api.Get("/status", s.getStatus)
	api.Get("/metrics", s.getMetrics)

	api.Post("/task/start", s.startTask)
	api.Get("/task/:id/stage/:stage/input", s.stageInput)
	api.Post("/task/:id/stage/:stage/begin", s.stageBegin)
	api.Post("/task/:id/stage/:stage/progress", s.stageProgress)
	api.Post("/task/:id/stage/:stage/result", s.stageResult)
	api.Get("/task/:id/service-calls", s.serviceCalls)
	api.Get("/task/:id/statistics", s.taskStatistics)

	api.Get("/workflows", s.listWorkflows)
	api.Get("/workflows/:id/runs", s.listWorkflowRuns)
	api.Get("/workflows/:id/runs/:run/status", s.workflowRunStatus)
	api.Post("/workflows/:id/run", s.runWorkflow)

	api.Post("/pipeline/execute", s.pipelineExecute)
	api.Get("/pipeline/status", s.pipelineStatus)
	api.Post("/pipeline/route-plan", s.pipelineRoutePlan)
	api.Post("/pipeline/navi-control", s.pipelineNaviControl)
	api.Post("/pipeline/sonar", s.pipelineSonar)
	api.Post("/pipeline/recognize", s.pipelineRecognize)
	api.Post("/pipeline/hit", s.pipelineHit)
}

// Start begins serving on the configured address. Blocks until shutdown.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber application, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler translates domain errors to HTTP status codes.
func errorHandler(c *fiber.Ctx, err error) error {
	var taskErr *task.Error
	if errors.As(err, &taskErr) {
		return c.Status(statusOf(taskErr.Code)).JSON(ErrorResponse{
			Error:   string(taskErr.Code),
			Message: taskErr.Message,
		})
	}

	var proxyErr *mission.ProxyError
	if errors.As(err, &proxyErr) {
		return c.Status(proxyErr.Status).JSON(ErrorResponse{
			Error:   "CONTROLLER_ERROR",
			Message: proxyErr.Body,
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error:   "INTERNAL",
			Message: fiberErr.Message,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "INTERNAL",
		Message: err.Error(),
	})
}

func statusOf(code task.ErrorCode) int {
	switch code {
	case task.ErrCodeNotFound:
		return fiber.StatusNotFound
	case task.ErrCodeInvalidStage, task.ErrCodeBadRequest:
		return fiber.StatusBadRequest
	case task.ErrCodeConflict:
		return fiber.StatusConflict
	case task.ErrCodeUpstreamUnavailable:
		return fiber.StatusServiceUnavailable
	case task.ErrCodeUpstreamError:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
