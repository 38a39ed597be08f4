package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/metrics"
	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/utils"
)

// ManualCardPaymentID is the sentinel payment id carried by webhooks for
// card payments confirmed by hand from the dashboard. Those events route
// by order id instead of gateway payment id.
const ManualCardPaymentID = "manual_card_payment"

// ErrOrderNotFound means a webhook could not be matched to any order.
var ErrOrderNotFound = errors.New("no order matches the webhook payload")

// ErrNoActiveKey means no gateway credential is configured for the
// requested environment.
var ErrNoActiveKey = errors.New("no active gateway api key configured")

// PaymentService owns order persistence and the charge orchestration
// against the gateway.
type PaymentService struct {
	db       *gorm.DB
	gateway  *AsaasService
	keystore *KeyStoreService
}

func NewPaymentService(db *gorm.DB, gateway *AsaasService, keystore *KeyStoreService) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		keystore: keystore,
	}
}

// OrderInput is the checkout form payload.
type OrderInput struct {
	CustomerName  string
	CustomerEmail string
	CustomerTaxID string
	CustomerPhone string
	ProductName   string
	Amount        float64
	PaymentMethod string
}

// PaymentResult is the outcome of a successful charge orchestration.
type PaymentResult struct {
	PaymentID      string     `json:"payment_id"`
	UsedKeyID      uint       `json:"used_key_id"`
	PixPayload     string     `json:"pix_payload"`
	PixImage       string     `json:"pix_image"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// CreateOrder persists a new PENDING order.
func (ps *PaymentService) CreateOrder(input OrderInput) (*models.Order, error) {
	order := &models.Order{
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerTaxID: utils.DigitsOnly(input.CustomerTaxID),
		CustomerPhone: utils.DigitsOnly(input.CustomerPhone),
		ProductName:   input.ProductName,
		Amount:        input.Amount,
		PaymentMethod: input.PaymentMethod,
		Status:        models.StatusPending,
		ExternalRef:   uuid.NewString(),
	}
	if err := ps.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	metrics.OrdersCreated.WithLabelValues(order.PaymentMethod).Inc()
	return order, nil
}

// ProcessPayment runs the three-step gateway sequence with the primary
// credential and, on failure, retries the whole sequence with each
// fallback in the order given. The first success is persisted on the
// order; when every credential fails the last error is returned wrapped
// and nothing is written. Gateway state created under a failed attempt
// (e.g. a customer record) is deliberately not cleaned up.
func (ps *PaymentService) ProcessPayment(order *models.Order, primary *models.ApiKey, fallbacks []models.ApiKey) (*PaymentResult, error) {
	keys := make([]*models.ApiKey, 0, len(fallbacks)+1)
	keys = append(keys, primary)
	for i := range fallbacks {
		keys = append(keys, &fallbacks[i])
	}

	var lastErr error
	for attempt, key := range keys {
		result, err := ps.attemptCharge(order, key)
		if err == nil {
			if attempt > 0 {
				metrics.KeyFallbacks.Inc()
				utils.InfoLogger.Printf("order %d charged with fallback key %d after %d failed attempt(s)", order.ID, key.ID, attempt)
			}
			if persistErr := ps.persistChargeResult(order, result); persistErr != nil {
				return nil, persistErr
			}
			return result, nil
		}
		lastErr = err
		utils.ErrorLogger.Printf("charge attempt with key %d failed for order %d: %v", key.ID, order.ID, err)
	}

	return nil, fmt.Errorf("all %d gateway credential(s) failed for order %d: %w", len(keys), order.ID, lastErr)
}

// ResolveKeys returns the primary and fallback credentials for the
// environment, failing with ErrNoActiveKey when none is configured.
func (ps *PaymentService) ResolveKeys(sandbox bool) (*models.ApiKey, []models.ApiKey, error) {
	primary, err := ps.keystore.GetActiveKey(sandbox)
	if err != nil {
		return nil, nil, err
	}
	if primary == nil {
		return nil, nil, ErrNoActiveKey
	}
	fallbacks, err := ps.keystore.FallbackKeys(sandbox, primary.ID)
	if err != nil {
		return nil, nil, err
	}
	return primary, fallbacks, nil
}

func (ps *PaymentService) attemptCharge(order *models.Order, key *models.ApiKey) (*PaymentResult, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.GatewayAttemptDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	customerID, err := ps.gateway.CreateCustomer(key, CustomerInput{
		Name:  order.CustomerName,
		Email: order.CustomerEmail,
		TaxID: order.CustomerTaxID,
		Phone: order.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}

	charge, err := ps.gateway.CreateCharge(key, customerID, order.Amount, order.ProductName, order.ExternalRef)
	if err != nil {
		return nil, err
	}

	qr, err := ps.gateway.FetchPixQrCode(key, charge.ID)
	if err != nil {
		return nil, err
	}

	outcome = "ok"
	result := &PaymentResult{
		PaymentID:  charge.ID,
		UsedKeyID:  key.ID,
		PixPayload: qr.Payload,
		PixImage:   qr.EncodedImage,
	}
	if qr.ExpirationDate != "" {
		if exp, parseErr := time.Parse("2006-01-02 15:04:05", qr.ExpirationDate); parseErr == nil {
			result.ExpirationDate = &exp
		} else {
			utils.ErrorLogger.Printf("unparseable pix expiration %q for charge %s", qr.ExpirationDate, charge.ID)
		}
	}
	return result, nil
}

func (ps *PaymentService) persistChargeResult(order *models.Order, result *PaymentResult) error {
	now := time.Now()
	order.PaymentID = &result.PaymentID
	order.UsedKeyID = &result.UsedKeyID
	order.PixPayload = result.PixPayload
	order.PixImage = result.PixImage
	order.PixExpiresAt = result.ExpirationDate
	order.UpdatedAt = now

	if err := ps.db.Save(order).Error; err != nil {
		return fmt.Errorf("failed to persist charge result for order %d: %w", order.ID, err)
	}
	return nil
}

// WebhookEvent is the payload delivered by the gateway or the simulator.
type WebhookEvent struct {
	Event   string `json:"event" binding:"required"`
	Payment struct {
		ID     string `json:"id" binding:"required"`
		Status string `json:"status"`
	} `json:"payment" binding:"required"`
	OrderID string `json:"orderId"`
}

// StatusForEvent maps a gateway event type to an order status. The
// payment.status field is used as fallback when the event type is not
// recognized.
func StatusForEvent(ev WebhookEvent) string {
	switch ev.Event {
	case "PAYMENT_RECEIVED", "PAYMENT_CONFIRMED":
		return models.StatusConfirmed
	case "PAYMENT_REFUNDED":
		return models.StatusRefunded
	case "PAYMENT_OVERDUE":
		return models.StatusOverdue
	case "PAYMENT_DELETED", "PAYMENT_CANCELLED":
		return models.StatusCancelled
	}
	switch ev.Payment.Status {
	case models.StatusPending, models.StatusConfirmed, models.StatusCancelled,
		models.StatusOverdue, models.StatusRefunded:
		return ev.Payment.Status
	}
	return ""
}

// ApplyWebhook routes an event to its order and applies the status
// change. Side effects run in a fixed sequence: order update first, then
// a best-effort mirror write, then the audit log append. The log append
// happens even when the mirror write fails.
func (ps *PaymentService) ApplyWebhook(ev WebhookEvent) (*models.Order, error) {
	status := StatusForEvent(ev)
	if status == "" {
		return nil, fmt.Errorf("webhook event %q carries no resolvable status", ev.Event)
	}

	var order models.Order
	var err error
	if ev.Payment.ID == ManualCardPaymentID && ev.OrderID != "" {
		err = ps.db.Where("id = ?", ev.OrderID).First(&order).Error
	} else {
		err = ps.db.Where("payment_id = ?", ev.Payment.ID).First(&order).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up order for webhook: %w", err)
	}

	// A stale delivery must not drag a settled order back to PENDING.
	// Terminal-to-terminal transitions (CONFIRMED -> REFUNDED) stay
	// allowed, and redelivering the same status is a no-op write.
	if status == models.StatusPending && models.IsTerminalStatus(order.Status) {
		utils.InfoLogger.Printf("ignoring stale webhook %s for order %d (status %s)", ev.Event, order.ID, order.Status)
		ps.appendWebhookLog(ev, order.Status)
		return &order, nil
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	if err := ps.db.Save(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to update order %d status: %w", order.ID, err)
	}

	ps.mirrorStatus(&order, ev.Payment.ID, status)
	ps.appendWebhookLog(ev, status)

	metrics.WebhooksProcessed.WithLabelValues(ev.Event, "ok").Inc()
	if status == models.StatusConfirmed {
		metrics.OrdersConfirmed.WithLabelValues(order.PaymentMethod).Inc()
	}
	return &order, nil
}

// mirrorStatus updates the non-authoritative payments mirror. Failures
// are logged and swallowed; the orders table already holds the truth.
func (ps *PaymentService) mirrorStatus(order *models.Order, paymentID, status string) {
	if paymentID == "" || paymentID == ManualCardPaymentID {
		return
	}
	mirror := models.PaymentMirror{
		PaymentID: paymentID,
		OrderID:   order.ID,
		Status:    status,
		UpdatedAt: time.Now(),
	}
	err := ps.db.Where("payment_id = ?", paymentID).
		Assign(map[string]interface{}{"status": status, "order_id": order.ID, "updated_at": mirror.UpdatedAt}).
		FirstOrCreate(&mirror).Error
	if err != nil {
		utils.ErrorLogger.Printf("best-effort mirror update failed for payment %s: %v", paymentID, err)
	}
}

func (ps *PaymentService) appendWebhookLog(ev WebhookEvent, status string) {
	raw, _ := json.Marshal(ev)
	entry := models.WebhookLog{
		Event:      ev.Event,
		PaymentID:  ev.Payment.ID,
		Status:     status,
		RawPayload: string(raw),
	}
	if err := ps.db.Create(&entry).Error; err != nil {
		utils.ErrorLogger.Printf("failed to append webhook log for event %s: %v", ev.Event, err)
	}
}

// RecordCardAttempt stores one credit-card submission for an order.
func (ps *PaymentService) RecordCardAttempt(order *models.Order, holder, number, month, year, cvv string) (*models.CardAttempt, error) {
	attempt := &models.CardAttempt{
		OrderID:      order.ID,
		HolderName:   holder,
		CardNumber:   utils.DigitsOnly(number),
		MaskedNumber: utils.MaskCardNumber(number),
		ExpiryMonth:  month,
		ExpiryYear:   year,
		CVV:          cvv,
		BIN:          utils.CardBIN(number),
		Brand:        utils.DetectCardBrand(number),
	}
	if err := ps.db.Create(attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to record card attempt: %w", err)
	}
	return attempt, nil
}
