package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reluxrent/api/internal/auth"
	"reluxrent/api/internal/cache"
	"reluxrent/api/internal/config"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/utils"
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// Helper to get AuthResult from context
func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler dispatches booking API methods.
type JsonApiHandler struct {
	cfg                 *config.Config
	bookingService      services.IBookingService
	reviewService       services.IReviewService
	conversationService services.IConversationService
	logger              *zap.Logger
	methods             map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(
	cfg *config.Config,
	bookingService services.IBookingService,
	reviewService services.IReviewService,
	conversationService services.IConversationService,
	logger *zap.Logger,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:                 cfg,
		bookingService:      bookingService,
		reviewService:       reviewService,
		conversationService: conversationService,
		logger:              logger,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                      h.ping,
		"propertyBooking":           h.propertyBooking,
		"requestBooking":            h.requestBooking,
		"propertyInquiry":           h.propertyInquiry,
		"preApproveBooking":         h.preApproveBooking,
		"withdrawPreApproveBooking": h.withdrawPreApproveBooking,
		"sendSpecialOffer":          h.sendSpecialOffer,
		"withdrawSpecialOffer":      h.withdrawSpecialOffer,
		"confirmBooking":            h.confirmBooking,
		"declineBookingByGuest":     h.declineBookingByGuest,
		"declineBookingByHost":      h.declineBookingByHost,
		"deleteBooking":             h.deleteBooking,
		"addGuestReview":            h.addGuestReview,
		"addHostReview":             h.addHostReview,
		"addPublicResponse":         h.addPublicResponse,
		"getBooking":                h.getBooking,
		"getConversationMessages":   h.getConversationMessages,
		"getPropertyAvailability":   h.getPropertyAvailability,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, NewApiError("Failed to read request body"))
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, NewApiError("Invalid JSON request format"))
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, NewApiError(fmt.Sprintf("Unknown method: %s", req.Method)))
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr)
		return
	}
	h.sendSuccessResponse(c, result)
}

// AuthResult holds optional authentication details
type AuthResult struct {
	UserID  *utils.SixID // nil for anonymous callers
	IsAdmin bool
}

// checkAuthForMethod validates the bearer token when the method needs one and
// stores the AuthResult in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	authRes := &AuthResult{}
	tokenString, tokenErr := auth.BearerToken(c.GetHeader("Authorization"))

	if !h.methodRequiresAuth(method) {
		if tokenErr == nil {
			if claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret); err == nil {
				if userID, idErr := claims.ActorID(); idErr == nil {
					authRes = &AuthResult{UserID: &userID, IsAdmin: claims.IsAdmin}
				}
			} else {
				h.logger.Debug("Ignoring invalid optional auth token", zap.String("method", method), zap.Error(err))
			}
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), authResultKey, authRes))
		return nil
	}

	if tokenErr != nil {
		return newStatusError(http.StatusUnauthorized, tokenErr.Error())
	}
	claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
	if err != nil {
		h.logger.Debug("Token validation failed", zap.String("method", method), zap.Error(err))
		return newStatusError(http.StatusUnauthorized, "Invalid or expired token")
	}
	userID, err := claims.ActorID()
	if err != nil {
		h.logger.Error("Valid JWT carries unusable user id", zap.String("method", method), zap.Error(err))
		return newStatusError(http.StatusUnauthorized, "Invalid or expired token")
	}

	authRes = &AuthResult{UserID: &userID, IsAdmin: claims.IsAdmin}
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), authResultKey, authRes))
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "ping", "getPropertyAvailability":
		return false
	default:
		return true
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, apiErr *ApiError) {
	status := apiErr.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, JsonApiResponse{Success: false, Error: apiErr.Message, Data: apiErr.Data})
}

// actor builds the caller identity passed to booking services.
func actor(c *gin.Context) (services.Actor, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return services.Actor{}, newStatusError(http.StatusUnauthorized, "Authentication required")
	}
	return services.Actor{
		UserID:    *authInfo.UserID,
		IsAdmin:   authInfo.IsAdmin,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, nil
}

// ApiError is returned to the caller with an HTTP status and optional payload.
type ApiError struct {
	Status  int
	Message string
	Data    interface{}
}

func (e *ApiError) Error() string {
	return e.Message
}

// NewApiError reports a bad request.
func NewApiError(message string) *ApiError {
	return &ApiError{Status: http.StatusBadRequest, Message: message}
}

func newStatusError(status int, message string) *ApiError {
	return &ApiError{Status: status, Message: message}
}

// serviceError maps a service failure onto the API error contract.
func (h *JsonApiHandler) serviceError(method string, err error) *ApiError {
	return mapServiceError(h.logger, method, err)
}

func mapServiceError(logger *zap.Logger, operation string, err error) *ApiError {
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &conflict):
		apiErr := newStatusError(http.StatusConflict, conflict.Error())
		if conflict.Stay != nil {
			apiErr.Data = conflict.Stay
		}
		return apiErr
	case errors.Is(err, cache.ErrLockBusy):
		return newStatusError(http.StatusConflict, "Property is being booked, try again")
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrSelfBooking),
		errors.Is(err, services.ErrUserBanned),
		errors.Is(err, services.ErrHostUnavailable):
		return newStatusError(http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return newStatusError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInvalidDates),
		errors.Is(err, services.ErrDatesUnavailable),
		errors.Is(err, services.ErrPropertyUnavailable),
		errors.Is(err, services.ErrReviewNotAllowed):
		return newStatusError(http.StatusBadRequest, err.Error())
	default:
		logger.Error("Booking API operation failed", zap.String("operation", operation), zap.Error(err))
		return newStatusError(http.StatusInternalServerError, "Internal server error")
	}
}

// parseRequiredSingleArgFromArray decodes the first element of the arguments array.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}
	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

// BookingArgs are the guest's arguments to propertyBooking, requestBooking and propertyInquiry.
type BookingArgs struct {
	PropertyID utils.SixID `json:"propertyId"`
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
	Guests     int         `json:"guests"`
	Currency   string      `json:"currency"`
	Message    string      `json:"message"`
}

func (a BookingArgs) input() services.BookingInput {
	return services.BookingInput{
		PropertyID:   a.PropertyID,
		StartDate:    a.StartDate,
		EndDate:      a.EndDate,
		Guests:       a.Guests,
		CurrencyCode: a.Currency,
		Message:      a.Message,
	}
}

type guestBookingFunc func(ctx context.Context, actor services.Actor, in services.BookingInput) (*models.Booking, error)

func (h *JsonApiHandler) guestBooking(c *gin.Context, args json.RawMessage, method string, create guestBookingFunc) (interface{}, *ApiError) {
	act, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in BookingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.PropertyID.IsZero() {
		return nil, NewApiError("propertyId is required")
	}
	booking, err := create(c.Request.Context(), act, in.input())
	if err != nil {
		return nil, h.serviceError(method, err)
	}
	return booking, nil
}

func (h *JsonApiHandler) propertyBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.guestBooking(c, args, "propertyBooking", h.bookingService.PropertyBooking)
}

func (h *JsonApiHandler) requestBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.guestBooking(c, args, "requestBooking", h.bookingService.RequestBooking)
}

func (h *JsonApiHandler) propertyInquiry(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.guestBooking(c, args, "propertyInquiry", h.bookingService.PropertyInquiry)
}

// BookingIDArgs address a single booking.
type BookingIDArgs struct {
	BookingID utils.SixID `json:"bookingId"`
}

func (h *JsonApiHandler) parseBookingID(args json.RawMessage) (utils.SixID, *ApiError) {
	var in BookingIDArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return utils.SixID{}, apiErr
	}
	if in.BookingID.IsZero() {
		return utils.SixID{}, NewApiError("bookingId is required")
	}
	return in.BookingID, nil
}

type bookingActionFunc func(ctx context.Context, actor services.Actor, bookingID utils.SixID) (*models.Booking, error)

func (h *JsonApiHandler) bookingAction(c *gin.Context, args json.RawMessage, method string, act bookingActionFunc) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	bookingID, apiErr := h.parseBookingID(args)
	if apiErr != nil {
		return nil, apiErr
	}
	booking, err := act(c.Request.Context(), caller, bookingID)
	if err != nil {
		return nil, h.serviceError(method, err)
	}
	return booking, nil
}

func (h *JsonApiHandler) preApproveBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.bookingAction(c, args, "preApproveBooking", h.bookingService.PreApproveBooking)
}

func (h *JsonApiHandler) withdrawPreApproveBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.bookingAction(c, args, "withdrawPreApproveBooking", h.bookingService.WithdrawPreApproval)
}

func (h *JsonApiHandler) withdrawSpecialOffer(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.bookingAction(c, args, "withdrawSpecialOffer", h.bookingService.WithdrawSpecialOffer)
}

// SpecialOfferArgs carry a host's counter-proposal. A propertyId sends the offer
// on a fresh booking for that property instead of the original booking.
type SpecialOfferArgs struct {
	BookingID  utils.SixID  `json:"bookingId"`
	PropertyID *utils.SixID `json:"propertyId,omitempty"`
	StartDate  string       `json:"startDate"`
	EndDate    string       `json:"endDate"`
	Guests     int          `json:"guests"`
	Price      float64      `json:"price"`
}

// SpecialOfferResult pairs the booking carrying the offer with the offer itself.
type SpecialOfferResult struct {
	Booking      *models.Booking      `json:"booking"`
	SpecialOffer *models.SpecialOffer `json:"specialOffer"`
}

func (h *JsonApiHandler) sendSpecialOffer(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in SpecialOfferArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.BookingID.IsZero() {
		return nil, NewApiError("bookingId is required")
	}

	var target services.OfferTarget = services.SameBooking{}
	if in.PropertyID != nil && !in.PropertyID.IsZero() {
		target = services.NewProperty{PropertyID: *in.PropertyID}
	}
	booking, offer, err := h.bookingService.SendSpecialOffer(c.Request.Context(), caller, in.BookingID, services.SpecialOfferInput{
		Target:    target,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Guests:    in.Guests,
		Price:     in.Price,
	})
	if err != nil {
		return nil, h.serviceError("sendSpecialOffer", err)
	}
	return SpecialOfferResult{Booking: booking, SpecialOffer: offer}, nil
}

// ConfirmArgs optionally reschedule the booking being confirmed.
type ConfirmArgs struct {
	BookingID utils.SixID `json:"bookingId"`
	StartDate string      `json:"startDate,omitempty"`
	EndDate   string      `json:"endDate,omitempty"`
	Guests    int         `json:"guests,omitempty"`
}

func (h *JsonApiHandler) confirmBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in ConfirmArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.BookingID.IsZero() {
		return nil, NewApiError("bookingId is required")
	}
	booking, err := h.bookingService.ConfirmBooking(c.Request.Context(), caller, in.BookingID, services.ConfirmInput{
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Guests:    in.Guests,
	})
	if err != nil {
		return nil, h.serviceError("confirmBooking", err)
	}
	return booking, nil
}

// DeclineArgs name the booking and an optional reason shown to the other side.
type DeclineArgs struct {
	BookingID utils.SixID `json:"bookingId"`
	Reason    string      `json:"reason,omitempty"`
}

func (h *JsonApiHandler) decline(c *gin.Context, args json.RawMessage, by models.DeclinedBy, method string) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in DeclineArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.BookingID.IsZero() {
		return nil, NewApiError("bookingId is required")
	}
	booking, err := h.bookingService.DeclineBooking(c.Request.Context(), caller, in.BookingID, by, in.Reason)
	if err != nil {
		return nil, h.serviceError(method, err)
	}
	return booking, nil
}

func (h *JsonApiHandler) declineBookingByGuest(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.decline(c, args, models.DeclinedByGuest, "declineBookingByGuest")
}

func (h *JsonApiHandler) declineBookingByHost(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.decline(c, args, models.DeclinedByHost, "declineBookingByHost")
}

func (h *JsonApiHandler) deleteBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	bookingID, apiErr := h.parseBookingID(args)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := h.bookingService.SoftDeleteBooking(c.Request.Context(), caller, bookingID); err != nil {
		return nil, h.serviceError("deleteBooking", err)
	}
	return nil, nil
}

// ReviewArgs are one side's review of a completed stay.
type ReviewArgs struct {
	BookingID          utils.SixID     `json:"bookingId"`
	Message            string          `json:"message"`
	SecretFeedback     string          `json:"secretFeedback,omitempty"`
	ImprovementMessage string          `json:"improvementMessage,omitempty"`
	Ratings            []models.Rating `json:"ratings"`
}

type reviewFunc func(ctx context.Context, actor services.Actor, in services.ReviewInput) (*models.Review, error)

func (h *JsonApiHandler) review(c *gin.Context, args json.RawMessage, method string, add reviewFunc) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in ReviewArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.BookingID.IsZero() {
		return nil, NewApiError("bookingId is required")
	}
	review, err := add(c.Request.Context(), caller, services.ReviewInput{
		BookingID:          in.BookingID,
		Message:            in.Message,
		SecretFeedback:     in.SecretFeedback,
		ImprovementMessage: in.ImprovementMessage,
		Ratings:            in.Ratings,
	})
	if err != nil {
		return nil, h.serviceError(method, err)
	}
	return review, nil
}

func (h *JsonApiHandler) addGuestReview(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.review(c, args, "addGuestReview", h.reviewService.AddGuestReview)
}

func (h *JsonApiHandler) addHostReview(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return h.review(c, args, "addHostReview", h.reviewService.AddHostReview)
}

// PublicResponseArgs answer a received review.
type PublicResponseArgs struct {
	ReviewID utils.SixID `json:"reviewId"`
	Response string      `json:"response"`
}

func (h *JsonApiHandler) addPublicResponse(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in PublicResponseArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.ReviewID.IsZero() {
		return nil, NewApiError("reviewId is required")
	}
	review, err := h.reviewService.AddPublicResponse(c.Request.Context(), caller, in.ReviewID, in.Response)
	if err != nil {
		return nil, h.serviceError("addPublicResponse", err)
	}
	return review, nil
}

// GetBookingArgs select a booking and the locale for translated fields.
type GetBookingArgs struct {
	BookingID utils.SixID `json:"bookingId"`
	Locale    string      `json:"locale,omitempty"`
}

func (h *JsonApiHandler) getBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in GetBookingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.BookingID.IsZero() {
		return nil, NewApiError("bookingId is required")
	}
	view, err := h.bookingService.GetBookingView(c.Request.Context(), caller, in.BookingID, in.Locale)
	if err != nil {
		return nil, h.serviceError("getBooking", err)
	}
	return view, nil
}

// ConversationArgs page through a conversation thread.
type ConversationArgs struct {
	ConversationID utils.SixID `json:"conversationId"`
	Limit          int64       `json:"limit,omitempty"`
}

func (h *JsonApiHandler) getConversationMessages(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	caller, apiErr := actor(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in ConversationArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.ConversationID.IsZero() {
		return nil, NewApiError("conversationId is required")
	}
	messages, err := h.conversationService.ListMessages(c.Request.Context(), caller.UserID, in.ConversationID, messagePageSize(in.Limit))
	if err != nil {
		return nil, h.serviceError("getConversationMessages", err)
	}
	return messages, nil
}

// AvailabilityArgs check a property's calendar for a date range.
type AvailabilityArgs struct {
	PropertyID utils.SixID `json:"propertyId"`
	StartDate  string      `json:"startDate"`
	EndDate    string      `json:"endDate"`
}

func (h *JsonApiHandler) getPropertyAvailability(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var in AvailabilityArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	if in.PropertyID.IsZero() {
		return nil, NewApiError("propertyId is required")
	}
	result, err := h.bookingService.GetPropertyAvailability(c.Request.Context(), in.PropertyID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, h.serviceError("getPropertyAvailability", err)
	}
	return result, nil
}
