package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reluxrent/api/internal/api/handlers"
	"reluxrent/api/internal/api/middleware"
	"reluxrent/api/internal/config"
	"reluxrent/api/internal/email"
	"reluxrent/api/internal/services"
)

const (
	testEmailPollAttempts = 10
	testEmailPollInterval = 200 * time.Millisecond
)

// Services bundles what the public API serves.
type Services struct {
	Bookings      services.IBookingService
	Reviews       services.IReviewService
	Conversations services.IConversationService
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(ctx context.Context, cfg *config.Config, svc Services, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, logger)

	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(rateLimiter.Limit())

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, svc.Bookings, svc.Reviews, svc.Conversations, logger)
	restBookingHandler := handlers.NewRestBookingHandler(svc.Bookings, svc.Conversations, logger)

	v1 := r.Group("/v1")
	{
		v1.POST("/api", jsonApiHandler.HandleRequest)
		v1.GET("/property/:id/availability", restBookingHandler.GetPropertyAvailability)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/booking/:id", restBookingHandler.GetBooking)
			authRequired.GET("/conversation/:id/messages", restBookingHandler.GetConversationMessages)
		}
	}

	return r
}

// EmailCapture reads back emails captured instead of delivered.
type EmailCapture interface {
	GetCaptured(ctx context.Context, to, templateID string) (*email.CapturedEmail, error)
}

// SetupServiceRouter configures the internal service API. capture may be nil when
// emails are really delivered.
func SetupServiceRouter(capture EmailCapture, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "data": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("Shutdown channel already signaled")
			}

		case "getTestEmail":
			if capture == nil {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Email capture is disabled; set MOCK_SERVICES=true"})
				return
			}
			var args []string // [templateID, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateId, email]"})
				return
			}
			templateID, emailAddr := args[0], args[1]

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < testEmailPollAttempts; i++ {
				captured, err := capture.GetCaptured(ctx, emailAddr, templateID)
				if err == nil {
					c.JSON(http.StatusOK, gin.H{"success": true, "data": captured})
					return
				}
				if !errors.Is(err, email.ErrNoCapturedEmail) {
					logger.Error("Service API: reading captured email failed", zap.String("template_id", templateID), zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				select {
				case <-ctx.Done():
					i = testEmailPollAttempts
				case <-time.After(testEmailPollInterval):
				}
			}
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for %s (%s)", emailAddr, templateID)})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})

	return r
}
