package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/events"
	"github.com/yeremiapane/pix-checkout/metrics"
	"github.com/yeremiapane/pix-checkout/services"
	"github.com/yeremiapane/pix-checkout/utils"
)

type WebhookController struct {
	DB       *gorm.DB
	Payments *services.PaymentService
}

func NewWebhookController(db *gorm.DB, payments *services.PaymentService) *WebhookController {
	return &WebhookController{DB: db, Payments: payments}
}

// HandleWebhook receives payment-status-changed events from the gateway
// or the local simulator. Unroutable payloads get a 400; the sender is
// expected to redeliver if it matters.
func (wc *WebhookController) HandleWebhook(c *gin.Context) {
	var ev services.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		metrics.WebhooksProcessed.WithLabelValues("malformed", "rejected").Inc()
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := wc.Payments.ApplyWebhook(ev)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			metrics.WebhooksProcessed.WithLabelValues(ev.Event, "unroutable").Inc()
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		if ev.Event != "" && services.StatusForEvent(ev) == "" {
			metrics.WebhooksProcessed.WithLabelValues(ev.Event, "rejected").Inc()
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		metrics.WebhooksProcessed.WithLabelValues(ev.Event, "error").Inc()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	events.BroadcastPaymentUpdate(*order, order.Status)
	utils.RespondJSON(c, http.StatusOK, "Webhook processed", gin.H{
		"order_id": order.ID,
		"status":   order.Status,
	})
}
