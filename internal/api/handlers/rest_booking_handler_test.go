package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reluxrent/api/internal/api/handlers"
	"reluxrent/api/internal/api/middleware"
	"reluxrent/api/internal/auth"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/utils"
)

const restSecret = "rest-secret"

func setupRestRouter(bookings services.IBookingService, conversations services.IConversationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewRestBookingHandler(bookings, conversations, zap.NewNop())
	r := gin.New()
	v1 := r.Group("/v1")
	v1.GET("/property/:id/availability", h.GetPropertyAvailability)
	authed := v1.Group("/", middleware.AuthMiddleware(restSecret))
	authed.GET("/booking/:id", h.GetBooking)
	authed.GET("/conversation/:id/messages", h.GetConversationMessages)
	return r
}

func restGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRestBookingHandler_GetBooking(t *testing.T) {
	bookings := new(MockBookingService)
	router := setupRestRouter(bookings, new(MockConversationService))
	userID := utils.NewSixID()
	token, err := auth.GenerateJWT(userID, false, restSecret, time.Hour)
	require.NoError(t, err)
	bookingID := utils.NewSixID()
	missingID := utils.NewSixID()

	bookings.On("GetBookingView", mock.Anything, mock.MatchedBy(func(a services.Actor) bool { return a.UserID == userID }), bookingID, "de").
		Return(&services.BookingView{Booking: &models.Booking{Base: models.Base{ID: bookingID}}}, nil)
	bookings.On("GetBookingView", mock.Anything, mock.Anything, missingID, "").
		Return(nil, services.ErrNotFound)

	w := restGet(router, "/v1/booking/"+bookingID.String()+"?locale=de", token)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, bookingID.String(), view["booking"].(map[string]interface{})["id"])

	assert.Equal(t, http.StatusNotFound, restGet(router, "/v1/booking/"+missingID.String(), token).Code)
	assert.Equal(t, http.StatusBadRequest, restGet(router, "/v1/booking/short", token).Code)
	assert.Equal(t, http.StatusUnauthorized, restGet(router, "/v1/booking/"+bookingID.String(), "").Code)
	bookings.AssertExpectations(t)
}

func TestRestBookingHandler_GetConversationMessages(t *testing.T) {
	conversations := new(MockConversationService)
	router := setupRestRouter(new(MockBookingService), conversations)
	userID := utils.NewSixID()
	token, err := auth.GenerateJWT(userID, false, restSecret, time.Hour)
	require.NoError(t, err)
	conversationID := utils.NewSixID()

	conversations.On("ListMessages", mock.Anything, userID, conversationID, int64(50)).
		Return([]models.ConversationMessage{{Body: "first"}, {Body: "second"}}, nil).Once()
	conversations.On("ListMessages", mock.Anything, userID, conversationID, int64(5)).
		Return(nil, services.ErrForbidden).Once()

	w := restGet(router, "/v1/conversation/"+conversationID.String()+"/messages?limit=9999", token)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []models.ConversationMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Messages, 2)

	assert.Equal(t, http.StatusForbidden, restGet(router, "/v1/conversation/"+conversationID.String()+"/messages?limit=5", token).Code)
	conversations.AssertExpectations(t)
}

func TestRestBookingHandler_GetPropertyAvailability(t *testing.T) {
	bookings := new(MockBookingService)
	router := setupRestRouter(bookings, new(MockConversationService))
	propertyID := utils.NewSixID()

	bookings.On("GetPropertyAvailability", mock.Anything, propertyID, "2025-06-10", "2025-06-13").
		Return(&services.AvailabilityResult{IsAvailable: false, IsBooked: true, LastBookingDates: []string{"2025-06-12"}}, nil)
	bookings.On("GetPropertyAvailability", mock.Anything, propertyID, "2025-06-13", "2025-06-10").
		Return(nil, services.ErrInvalidDates)

	w := restGet(router, "/v1/property/"+propertyID.String()+"/availability?start=2025-06-10&end=2025-06-13", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res services.AvailabilityResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.IsBooked)
	assert.Equal(t, []string{"2025-06-12"}, res.LastBookingDates)

	assert.Equal(t, http.StatusBadRequest, restGet(router, "/v1/property/"+propertyID.String()+"/availability?start=2025-06-13&end=2025-06-10", "").Code)
	assert.Equal(t, http.StatusBadRequest, restGet(router, "/v1/property/"+propertyID.String()+"/availability?start=2025-06-10", "").Code)
	bookings.AssertExpectations(t)
}
