package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reluxrent/api/internal/api/middleware"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/utils"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
)

// RestBookingHandler serves read-only booking, conversation and availability resources.
type RestBookingHandler struct {
	bookingService      services.IBookingService
	conversationService services.IConversationService
	logger              *zap.Logger
}

// NewRestBookingHandler creates a new RestBookingHandler.
func NewRestBookingHandler(bookingService services.IBookingService, conversationService services.IConversationService, logger *zap.Logger) *RestBookingHandler {
	return &RestBookingHandler{
		bookingService:      bookingService,
		conversationService: conversationService,
		logger:              logger,
	}
}

func (h *RestBookingHandler) fail(c *gin.Context, operation string, err error) {
	apiErr := mapServiceError(h.logger, operation, err)
	body := gin.H{"error": apiErr.Message}
	if apiErr.Data != nil {
		body["data"] = apiErr.Data
	}
	c.JSON(apiErr.Status, body)
}

// restActor reads the identity set by middleware.AuthMiddleware.
func restActor(c *gin.Context) (services.Actor, bool) {
	raw, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		return services.Actor{}, false
	}
	userID, ok := raw.(utils.SixID)
	if !ok || userID.IsZero() {
		return services.Actor{}, false
	}
	return services.Actor{
		UserID:    userID,
		IsAdmin:   c.GetBool(middleware.ContextKeyIsAdmin),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, true
}

func pathID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil || id.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return utils.SixID{}, false
	}
	return id, true
}

// GetBooking handles GET /v1/booking/:id
func (h *RestBookingHandler) GetBooking(c *gin.Context) {
	caller, ok := restActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	bookingID, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.bookingService.GetBookingView(c.Request.Context(), caller, bookingID, c.Query("locale"))
	if err != nil {
		h.fail(c, "GetBooking", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetConversationMessages handles GET /v1/conversation/:id/messages
func (h *RestBookingHandler) GetConversationMessages(c *gin.Context) {
	caller, ok := restActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	conversationID, ok := pathID(c)
	if !ok {
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultMessagePage)), 10, 64)
	if err != nil {
		limit = defaultMessagePage
	}
	messages, err := h.conversationService.ListMessages(c.Request.Context(), caller.UserID, conversationID, messagePageSize(limit))
	if err != nil {
		h.fail(c, "GetConversationMessages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetPropertyAvailability handles GET /v1/property/:id/availability?start=&end=
func (h *RestBookingHandler) GetPropertyAvailability(c *gin.Context) {
	propertyID, ok := pathID(c)
	if !ok {
		return
	}
	start, end := c.Query("start"), c.Query("end")
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end query parameters are required"})
		return
	}
	result, err := h.bookingService.GetPropertyAvailability(c.Request.Context(), propertyID, start, end)
	if err != nil {
		h.fail(c, "GetPropertyAvailability", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// messagePageSize falls back to the default page for missing or out-of-range limits.
func messagePageSize(limit int64) int64 {
	if limit <= 0 || limit > maxMessagePage {
		return defaultMessagePage
	}
	return limit
}
