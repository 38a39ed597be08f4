package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/events"
	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/services"
	"github.com/yeremiapane/pix-checkout/utils"
)

type CheckoutController struct {
	DB       *gorm.DB
	Payments *services.PaymentService
	Sandbox  bool
}

func NewCheckoutController(db *gorm.DB, payments *services.PaymentService, sandbox bool) *CheckoutController {
	return &CheckoutController{DB: db, Payments: payments, Sandbox: sandbox}
}

type checkoutRequest struct {
	CustomerName  string  `json:"customer_name" binding:"required"`
	CustomerEmail string  `json:"customer_email" binding:"required,email"`
	CustomerTaxID string  `json:"customer_tax_id" binding:"required"`
	CustomerPhone string  `json:"customer_phone"`
	ProductName   string  `json:"product_name" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" binding:"required,oneof=pix creditCard"`

	// Card fields, required only for creditCard.
	CardHolder string `json:"card_holder"`
	CardNumber string `json:"card_number"`
	CardMonth  string `json:"card_month"`
	CardYear   string `json:"card_year"`
	CardCVV    string `json:"card_cvv"`
}

// CreateCheckout creates a PENDING order and, for pix, runs the charge
// orchestration and returns the payable code.
func (cc *CheckoutController) CreateCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if req.PaymentMethod == models.MethodCreditCard {
		if req.CardHolder == "" || req.CardNumber == "" || req.CardMonth == "" || req.CardYear == "" || req.CardCVV == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("card fields are required for creditCard payments"))
			return
		}
	}

	order, err := cc.Payments.CreateOrder(services.OrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerTaxID: req.CustomerTaxID,
		CustomerPhone: req.CustomerPhone,
		ProductName:   req.ProductName,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if req.PaymentMethod == models.MethodCreditCard {
		attempt, err := cc.Payments.RecordCardAttempt(order, req.CardHolder, req.CardNumber, req.CardMonth, req.CardYear, req.CardCVV)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		// Card payments stay PENDING until an operator confirms them
		// from the dashboard (manual_card_payment webhook).
		events.BroadcastOrderUpdate(*order)
		utils.RespondJSON(c, http.StatusCreated, "Card payment submitted", gin.H{
			"order_id": order.ID,
			"status":   order.Status,
			"brand":    attempt.Brand,
		})
		return
	}

	primary, fallbacks, err := cc.Payments.ResolveKeys(cc.Sandbox)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveKey) {
			utils.RespondError(c, http.StatusServiceUnavailable, fmt.Errorf("payment gateway is not configured: %w", err))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	result, err := cc.Payments.ProcessPayment(order, primary, fallbacks)
	if err != nil {
		utils.ErrorLogger.Printf("payment orchestration failed for order %d: %v", order.ID, err)
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	events.BroadcastOrderUpdate(*order)
	utils.RespondJSON(c, http.StatusCreated, "Payment initiated", gin.H{
		"order_id":        order.ID,
		"payment_id":      result.PaymentID,
		"used_key_id":     result.UsedKeyID,
		"pix_payload":     result.PixPayload,
		"pix_image":       result.PixImage,
		"expiration_date": result.ExpirationDate,
		"status":          order.Status,
	})
}
