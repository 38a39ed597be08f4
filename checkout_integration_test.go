package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/config"
	"github.com/yeremiapane/pix-checkout/router"
	"github.com/yeremiapane/pix-checkout/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

// TestEndToEndIntegration walks the main flow:
// 0. Register an admin and log in -> token
// 1. Add a sandbox gateway credential
// 2. POST /api/checkout (pix) against a mock gateway -> payment id + copy-paste code
// 3. Deliver PAYMENT_RECEIVED through the webhook simulator
// 4. GET /api/check-payment-status -> CONFIRMED
func TestEndToEndIntegration(t *testing.T) {
	db := setupTestDB()
	gateway := startMockGateway()
	defer gateway.Close()

	cfg := &config.Config{
		GatewayEnv:  "sandbox",
		GatewayURL:  gateway.URL,
		AllowOrigin: "*",
	}
	r := router.SetupRouter(db, cfg)

	token := registerAndLoginTest(t, r)
	addApiKeyTest(t, r, token)
	paymentID := createCheckoutTest(t, r)
	deliverWebhookTest(t, r, paymentID)
	checkStatusTest(t, r, paymentID, "CONFIRMED")
}

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	if err := config.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// startMockGateway stands in for the charge API: customer creation,
// charge creation and the pix qr code lookup.
func startMockGateway() *httptest.Server {
	expiration := time.Now().Add(30 * time.Minute).Format("2006-01-02 15:04:05")
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("access_token") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"code":"invalid_access_token","description":"Invalid access token"}]}`))
			return
		}
		switch {
		case r.URL.Path == "/customers":
			w.Write([]byte(`{"id": "cus_e2e"}`))
		case r.URL.Path == "/payments":
			w.Write([]byte(`{"id": "pay_e2e", "status": "PENDING", "value": 79.90, "billingType": "PIX"}`))
		case strings.HasSuffix(r.URL.Path, "/pixQrCode"):
			fmt.Fprintf(w, `{"payload": "pix-copy-paste", "encodedImage": "img==", "expirationDate": "%s"}`, expiration)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func registerAndLoginTest(t *testing.T, r *gin.Engine) string {
	registerBody := map[string]string{
		"name":     "Test Admin",
		"email":    "admin@example.com",
		"password": "secret123!",
		"role":     "admin",
	}
	w := postJSON(r, "/register", registerBody, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register fail: code=%d, body=%s", w.Code, w.Body.String())
	}

	loginBody := map[string]string{
		"email":    "admin@example.com",
		"password": "secret123!",
	}
	w = postJSON(r, "/login", loginBody, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login fail: code=%d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Status || resp.Data.Token == "" {
		t.Fatalf("login: no token in response, body=%s", w.Body.String())
	}
	return resp.Data.Token
}

func addApiKeyTest(t *testing.T, r *gin.Engine, token string) {
	body := map[string]interface{}{
		"name":         "sandbox e2e",
		"access_token": "aact_sandbox_e2e_0123456789",
		"sandbox":      true,
		"active":       true,
		"priority":     1,
	}
	w := postJSON(r, "/admin/api-keys", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("addApiKey: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
}

func createCheckoutTest(t *testing.T, r *gin.Engine) string {
	body := map[string]interface{}{
		"customer_name":   "Maria Silva",
		"customer_email":  "maria@example.com",
		"customer_tax_id": "123.456.789-09",
		"customer_phone":  "(11) 98765-4321",
		"product_name":    "Curso de Go",
		"amount":          79.90,
		"payment_method":  "pix",
	}
	w := postJSON(r, "/api/checkout", body, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("createCheckout: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			PaymentID  string `json:"payment_id"`
			PixPayload string `json:"pix_payload"`
			Status     string `json:"status"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.PaymentID == "" {
		t.Fatalf("createCheckout: missing payment id, body=%s", w.Body.String())
	}
	if resp.Data.PixPayload != "pix-copy-paste" {
		t.Fatalf("createCheckout: want pix payload, got %q", resp.Data.PixPayload)
	}
	if resp.Data.Status != "PENDING" {
		t.Fatalf("createCheckout: want PENDING, got %s", resp.Data.Status)
	}
	return resp.Data.PaymentID
}

func deliverWebhookTest(t *testing.T, r *gin.Engine, paymentID string) {
	body := map[string]interface{}{
		"event": "PAYMENT_RECEIVED",
		"payment": map[string]interface{}{
			"id":     paymentID,
			"status": "RECEIVED",
		},
	}
	w := postJSON(r, "/api/webhook-simulator", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("deliverWebhook: expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func checkStatusTest(t *testing.T, r *gin.Engine, paymentID, want string) {
	req := httptest.NewRequest(http.MethodGet, "/api/check-payment-status?paymentId="+paymentID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("checkStatus: expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Source string `json:"source"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != want {
		t.Fatalf("checkStatus: want %s, got %s (body=%s)", want, resp.Status, w.Body.String())
	}
	if resp.Source != "order" {
		t.Fatalf("checkStatus: want source=order, got %s", resp.Source)
	}
}

func postJSON(r *gin.Engine, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	bodyBytes, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
