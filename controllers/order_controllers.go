package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/events"
	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/utils"
)

type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

// GetAllOrders lists orders, newest first. Optional ?status= filter.
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	var orders []models.Order
	query := oc.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All orders", orders)
}

// GetOrderByID returns one order.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	var order models.Order
	if err := oc.DB.First(&order, c.Param("order_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("order not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus is the manual admin override. The change is audited
// as a synthetic MANUAL_OVERRIDE webhook entry and broadcast to
// dashboards.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	type reqBody struct {
		Status string `json:"status" binding:"required,oneof=PENDING CONFIRMED CANCELLED OVERDUE REFUNDED"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	if err := oc.DB.First(&order, c.Param("order_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("order not found"))
		return
	}

	order.Status = body.Status
	order.UpdatedAt = time.Now()
	if err := oc.DB.Save(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	paymentID := ""
	if order.PaymentID != nil {
		paymentID = *order.PaymentID
	}
	raw, _ := json.Marshal(gin.H{"orderId": order.ID, "status": body.Status, "by": c.GetString("role")})
	logEntry := models.WebhookLog{
		Event:      "MANUAL_OVERRIDE",
		PaymentID:  paymentID,
		Status:     body.Status,
		RawPayload: string(raw),
	}
	if err := oc.DB.Create(&logEntry).Error; err != nil {
		utils.ErrorLogger.Printf("failed to audit manual override for order %d: %v", order.ID, err)
	}

	events.BroadcastOrderUpdate(order)
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// DeleteOrder removes an order and its dependent records.
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	var order models.Order
	if err := oc.DB.First(&order, c.Param("order_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("order not found"))
		return
	}

	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.CardAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete card attempts: %w", err)
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.PaymentMirror{}).Error; err != nil {
			return fmt.Errorf("failed to delete payment mirror: %w", err)
		}
		if err := tx.Delete(&order).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order deleted", gin.H{"order_id": order.ID})
}

// GetCardAttempts lists the card submission history of an order.
func (oc *OrderController) GetCardAttempts(c *gin.Context) {
	var attempts []models.CardAttempt
	if err := oc.DB.Where("order_id = ?", c.Param("order_id")).Order("created_at ASC").Find(&attempts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Card attempts", attempts)
}

// GetWebhookLogs lists the audit trail, newest first.
func (oc *OrderController) GetWebhookLogs(c *gin.Context) {
	var logs []models.WebhookLog
	query := oc.DB.Order("created_at DESC").Limit(200)
	if paymentID := c.Query("payment_id"); paymentID != "" {
		query = query.Where("payment_id = ?", paymentID)
	}
	if err := query.Find(&logs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Webhook logs", logs)
}
