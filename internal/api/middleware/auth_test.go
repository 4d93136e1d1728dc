package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reluxrent/api/internal/auth"
	"reluxrent/api/internal/utils"
)

const testSecret = "middleware-secret"

func setupAuthEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), func(c *gin.Context) {
		id := c.MustGet(ContextKeyUserID).(utils.SixID)
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "admin": c.GetBool(ContextKeyIsAdmin)})
	})
	r.GET("/admin", AuthMiddleware(testSecret), AdminMiddleware(), func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func call(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	router := setupAuthEngine()
	userID := utils.NewSixID()
	token, err := auth.GenerateJWT(userID, false, testSecret, time.Hour)
	require.NoError(t, err)

	w := call(router, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, userID.String(), body["id"])
	assert.Equal(t, false, body["admin"])

	assert.Equal(t, http.StatusUnauthorized, call(router, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(router, "/me", "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, call(router, "/me", "Bearer garbage").Code)
}

func TestAdminMiddleware(t *testing.T) {
	router := setupAuthEngine()
	userToken, err := auth.GenerateJWT(utils.NewSixID(), false, testSecret, time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.GenerateJWT(utils.NewSixID(), true, testSecret, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, call(router, "/admin", "Bearer "+userToken).Code)
	assert.Equal(t, http.StatusOK, call(router, "/admin", "Bearer "+adminToken).Code)
}
