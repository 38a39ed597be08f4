package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/utils"
)

// GatewayError is a non-2xx response from the payment gateway. The
// message is the parsed gateway error when the body is JSON, raw text
// otherwise.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}

// AsaasService talks to the Asaas REST API. It performs no retries;
// credential fallback is the orchestrator's job.
type AsaasService struct {
	BaseURL    string
	Sandbox    bool
	httpClient *http.Client
}

// NewAsaasService builds a client for the environment. baseURL overrides
// the default host when non-empty (tests point it at a local server).
func NewAsaasService(sandbox bool, baseURL string) *AsaasService {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.asaas.com/api/v3"
		} else {
			baseURL = "https://api.asaas.com/v3"
		}
	}
	return &AsaasService{
		BaseURL: baseURL,
		Sandbox: sandbox,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CustomerInput is the customer identity sent to the gateway.
type CustomerInput struct {
	Name  string
	Email string
	TaxID string
	Phone string
}

// ChargeResponse is the charge as returned by POST /payments.
type ChargeResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Value       float64 `json:"value"`
	DueDate     string  `json:"dueDate"`
	InvoiceURL  string  `json:"invoiceUrl"`
	BillingType string  `json:"billingType"`
	CustomerID  string  `json:"customer"`
}

// PixQrCode is the payable code for a charge.
type PixQrCode struct {
	Payload        string `json:"payload"`
	EncodedImage   string `json:"encodedImage"`
	ExpirationDate string `json:"expirationDate"`
}

// CreateCustomer registers the customer and returns the gateway id.
// Phone and tax id are normalized to digits before submission.
func (as *AsaasService) CreateCustomer(key *models.ApiKey, input CustomerInput) (string, error) {
	payload := map[string]interface{}{
		"name":        input.Name,
		"email":       input.Email,
		"cpfCnpj":     utils.DigitsOnly(input.TaxID),
		"mobilePhone": utils.DigitsOnly(input.Phone),
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := as.post("createCustomer", "/customers", key, payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateCharge creates a PIX charge due today for the customer.
func (as *AsaasService) CreateCharge(key *models.ApiKey, customerID string, amount float64, description, externalRef string) (*ChargeResponse, error) {
	payload := map[string]interface{}{
		"customer":          customerID,
		"billingType":       "PIX",
		"value":             amount,
		"dueDate":           time.Now().Format("2006-01-02"),
		"description":       description,
		"externalReference": externalRef,
	}

	var resp ChargeResponse
	if err := as.post("createCharge", "/payments", key, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchPixQrCode fetches the scannable code for a created charge.
func (as *AsaasService) FetchPixQrCode(key *models.ApiKey, chargeID string) (*PixQrCode, error) {
	var resp PixQrCode
	if err := as.get("fetchPixQrCode", fmt.Sprintf("/payments/%s/pixQrCode", chargeID), key, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (as *AsaasService) post(op, path string, key *models.ApiKey, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling %s request: %v", op, err)
	}

	req, err := http.NewRequest(http.MethodPost, as.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating %s request: %v", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return as.do(op, req, key, out)
}

func (as *AsaasService) get(op, path string, key *models.ApiKey, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, as.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating %s request: %v", op, err)
	}
	return as.do(op, req, key, out)
}

func (as *AsaasService) do(op string, req *http.Request, key *models.ApiKey, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access_token", key.AccessToken)

	resp, err := as.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error calling gateway %s: %v", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading %s response: %v", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    parseGatewayError(body),
		}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("error unmarshaling %s response: %v", op, err)
		}
	}
	return nil
}

// parseGatewayError pulls a human-readable message from an error body.
// Asaas wraps errors in {"errors":[{"code","description"}]}; anything
// else falls back to the raw text.
func parseGatewayError(body []byte) string {
	var parsed struct {
		Errors []struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"errors"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if len(parsed.Errors) > 0 && parsed.Errors[0].Description != "" {
			return parsed.Errors[0].Description
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(body)
}
