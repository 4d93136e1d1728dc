package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reluxrent/api/internal/auth"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

const (
	testAppBinary      = "./reluxrent_test_app"
	testAppPort        = "8089"
	testServiceApiPort = "8091"
	testAppURL         = "http://localhost:" + testAppPort
	testServiceApiURL  = "http://localhost:" + testServiceApiPort
	testJwtSecret      = "integration-test-secret"
	testDbName         = "reluxrent_integration"
	startupTimeout     = 20 * time.Second
)

// seeded holds the fixture documents shared by all integration tests.
var seeded struct {
	host, guest, otherGuest models.User
	property                models.Property
}

// integrationEnabled is false when no MongoDB replica set is configured; every test then skips.
var integrationEnabled bool

// TestMain builds the binary, seeds MongoDB and runs the app in "all" mode with emails
// captured in Redis. Booking transactions need MONGO_URI to point at a replica set.
func TestMain(m *testing.M) {
	godotenv.Load()
	if os.Getenv("MONGO_URI") == "" {
		log.Println("MONGO_URI not set; integration tests will be skipped")
		os.Exit(m.Run())
	}
	integrationEnabled = true
	defer func() { _ = os.Remove(testAppBinary) }()

	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		log.Printf("Failed to build application: %v\n%s", err, out)
		os.Exit(1)
	}

	if err := seedTestData(); err != nil {
		log.Printf("Failed to seed test data: %v", err)
		os.Exit(1)
	}

	appCmd := exec.Command(testAppBinary, "-m", "all")
	appCmd.Env = append(os.Environ(),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceApiPort,
		"MONGO_DB_NAME="+testDbName,
		"JWT_SECRET="+testJwtSecret,
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"GUEST_SERVICE_FEE_PERCENT=10",
		"HOST_SERVICE_FEE_PERCENT=3",
		"RATE_LIMIT_BUCKET_SIZE=100",
		"RATE_LIMIT_REFILL_RATE=100",
		"SMTP_FROM_ADDRESS=test@reluxrent.test",
	)
	appCmd.Stdout = os.Stdout
	appCmd.Stderr = os.Stderr
	if err := appCmd.Start(); err != nil {
		log.Printf("Failed to start application: %v", err)
		os.Exit(1)
	}

	code := 1
	if waitForServer(testAppURL + "/v1/ping") {
		code = m.Run()
	} else {
		log.Printf("Application did not become ready within %s", startupTimeout)
	}

	// Shut down through the Service API so that path stays exercised.
	if _, err := http.Post(testServiceApiURL+"/api", "application/json", strings.NewReader(`{"method":"shutdown"}`)); err != nil {
		_ = appCmd.Process.Kill()
	}
	_ = appCmd.Wait()
	cleanupTestData()
	os.Exit(code)
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if !integrationEnabled {
		t.Skip("MONGO_URI not set; skipping integration test")
	}
}

func waitForServer(url string) bool {
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

func connectTestDB() (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		return nil, nil, err
	}
	return client, client.Database(testDbName), nil
}

func newSeedUser(first string, verified bool) models.User {
	id := utils.NewSixID()
	return models.User{
		Base:       models.Base{ID: id},
		FirstName:  first,
		LastName:   "Tester",
		Email:      strings.ToLower(fmt.Sprintf("%s.%s@reluxrent.test", first, id)),
		Locale:     "en",
		IsVerified: verified,
		CreatedAt:  time.Now().UTC(),
	}
}

func seedTestData() error {
	client, database, err := connectTestDB()
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	ctx := context.Background()
	if err := database.Drop(ctx); err != nil {
		return fmt.Errorf("drop test database: %w", err)
	}

	seeded.host = newSeedUser("Hannah", true)
	seeded.guest = newSeedUser("Gabriel", true)
	seeded.otherGuest = newSeedUser("Olivia", true)
	seeded.property = models.Property{
		Base:           models.Base{ID: utils.NewSixID()},
		HostID:         seeded.host.ID,
		Title:          "Seaside Loft",
		CurrencyCode:   "USD",
		Status:         models.PropertyStatusApproved,
		IsListed:       true,
		BasePrice:      100,
		CleaningPrice:  50,
		GuestsIncluded: 2,
		MaxGuests:      4,
		CreatedAt:      time.Now().UTC(),
	}

	users := []interface{}{seeded.host, seeded.guest, seeded.otherGuest}
	if _, err := database.Collection("users").InsertMany(ctx, users); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if _, err := database.Collection("properties").InsertOne(ctx, seeded.property); err != nil {
		return fmt.Errorf("seed property: %w", err)
	}
	currencies := []interface{}{
		models.Currency{Base: models.Base{ID: utils.NewSixID()}, Code: "USD", Symbol: "$", DecimalPlaces: 2, RateToBase: 1},
		models.Currency{Base: models.Base{ID: utils.NewSixID()}, Code: "EUR", Symbol: "€", DecimalPlaces: 2, RateToBase: 1.25},
	}
	if _, err := database.Collection("currencies").InsertMany(ctx, currencies); err != nil {
		return fmt.Errorf("seed currencies: %w", err)
	}
	return nil
}

func cleanupTestData() {
	client, database, err := connectTestDB()
	if err != nil {
		log.Printf("Cleanup: cannot connect: %v", err)
		return
	}
	defer client.Disconnect(context.Background())
	if err := database.Drop(context.Background()); err != nil {
		log.Printf("Cleanup: drop failed: %v", err)
	}
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	token, err := auth.GenerateJWT(u.ID, false, testJwtSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func makeJsonApiRequest(t *testing.T, token, method string, arg interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload := map[string]interface{}{"method": method}
	if arg != nil {
		payload["arguments"] = []interface{}{arg}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, testAppURL+"/v1/api", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getEmailFromServiceAPI(t *testing.T, templateID, to string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"method": "getTestEmail", "arguments": []string{templateID, to}})
	// The email is delivered by the background worker, so poll a little longer than one call.
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Post(testServiceApiURL+"/api", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return out["data"].(map[string]interface{})
		}
		if time.Now().After(deadline) {
			t.Fatalf("no %s email for %s: %v", templateID, to, out["error"])
		}
	}
}

func stayDates(offsetDays, nights int) (string, string) {
	start := time.Now().UTC().AddDate(0, 0, offsetDays)
	return start.Format("2006-01-02"), start.AddDate(0, 0, nights).Format("2006-01-02")
}

func TestIntegration_Ping(t *testing.T) {
	requireIntegration(t)
	resp, err := http.Get(testAppURL + "/v1/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, out := makeJsonApiRequest(t, "", "ping", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", out["data"])
}

func TestIntegration_RequestPreApproveConfirm(t *testing.T) {
	requireIntegration(t)
	guestToken := tokenFor(t, seeded.guest)
	hostToken := tokenFor(t, seeded.host)
	start, end := stayDates(30, 3)

	status, out := makeJsonApiRequest(t, guestToken, "requestBooking", map[string]interface{}{
		"propertyId": seeded.property.ID,
		"startDate":  start,
		"endDate":    end,
		"guests":     2,
		"currency":   "USD",
		"message":    "We would love to stay",
	})
	require.Equal(t, http.StatusOK, status, out["error"])
	booking := out["data"].(map[string]interface{})
	bookingID := booking["id"].(string)
	assert.Equal(t, "PENDING", booking["booking_status"])
	// 3 nights at 100, cleaning 50, 10% guest fee on the subtotal.
	assert.Equal(t, 385.0, booking["grand_total"])

	email := getEmailFromServiceAPI(t, "booking_request_received", seeded.host.Email)
	assert.Contains(t, email["subject"], "Seaside Loft")

	status, out = makeJsonApiRequest(t, guestToken, "preApproveBooking", map[string]interface{}{"bookingId": bookingID})
	assert.Equal(t, http.StatusForbidden, status, out["error"])

	status, out = makeJsonApiRequest(t, hostToken, "preApproveBooking", map[string]interface{}{"bookingId": bookingID})
	require.Equal(t, http.StatusOK, status, out["error"])
	assert.Equal(t, "ACCEPTED", out["data"].(map[string]interface{})["booking_status"])
	getEmailFromServiceAPI(t, "booking_pre_approved", seeded.guest.Email)

	status, out = makeJsonApiRequest(t, guestToken, "confirmBooking", map[string]interface{}{"bookingId": bookingID})
	require.Equal(t, http.StatusOK, status, out["error"])
	confirmed := out["data"].(map[string]interface{})
	assert.Equal(t, "CONFIRMED", confirmed["booking_status"])
	assert.Len(t, confirmed["confirmation_code"], 10)
	getEmailFromServiceAPI(t, "booking_confirmed", seeded.host.Email)

	// The confirmed nights now block another guest.
	status, out = makeJsonApiRequest(t, tokenFor(t, seeded.otherGuest), "propertyBooking", map[string]interface{}{
		"propertyId": seeded.property.ID,
		"startDate":  start,
		"endDate":    end,
		"guests":     1,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, bookingID, out["data"].(map[string]interface{})["id"])

	// Checkout day stays bookable.
	_, nextEnd := stayDates(33, 2)
	status, out = makeJsonApiRequest(t, tokenFor(t, seeded.otherGuest), "propertyBooking", map[string]interface{}{
		"propertyId": seeded.property.ID,
		"startDate":  end,
		"endDate":    nextEnd,
		"guests":     1,
	})
	assert.Equal(t, http.StatusOK, status, out["error"])

	status, out = makeJsonApiRequest(t, guestToken, "getBooking", map[string]interface{}{"bookingId": bookingID})
	require.Equal(t, http.StatusOK, status, out["error"])
	view := out["data"].(map[string]interface{})
	require.NotNil(t, view["conversationId"])

	status, out = makeJsonApiRequest(t, hostToken, "getConversationMessages", map[string]interface{}{"conversationId": view["conversationId"]})
	require.Equal(t, http.StatusOK, status, out["error"])
	assert.NotEmpty(t, out["data"])
}

func TestIntegration_AvailabilityEndpoint(t *testing.T) {
	requireIntegration(t)
	start, end := stayDates(90, 2)
	resp, err := http.Get(fmt.Sprintf("%s/v1/property/%s/availability?start=%s&end=%s", testAppURL, seeded.property.ID, start, end))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, true, result["isAvailable"])
}

func TestIntegration_BookingRequiresAuth(t *testing.T) {
	requireIntegration(t)
	status, _ := makeJsonApiRequest(t, "", "getBooking", map[string]interface{}{"bookingId": utils.NewSixID()})
	assert.Equal(t, http.StatusUnauthorized, status)

	req, _ := http.NewRequest(http.MethodGet, testAppURL+"/v1/booking/"+utils.NewSixID().String(), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
