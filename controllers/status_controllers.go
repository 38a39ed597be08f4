package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/utils"
)

type StatusController struct {
	DB *gorm.DB
}

func NewStatusController(db *gorm.DB) *StatusController {
	return &StatusController{DB: db}
}

// CheckPaymentStatus is the polling endpoint used by the checkout page.
// It never hard-fails toward the client: unknown ids and read errors
// degrade to PENDING, with an error field for diagnostics.
func (sc *StatusController) CheckPaymentStatus(c *gin.Context) {
	paymentID := c.Query("paymentId")
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentId query parameter is required"})
		return
	}

	var order models.Order
	err := sc.DB.Where("payment_id = ?", paymentID).First(&order).Error
	if err != nil {
		resp := gin.H{
			"status":    models.StatusPending,
			"paymentId": paymentID,
			"source":    "default",
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorLogger.Printf("status check read failed for payment %s: %v", paymentID, err)
			resp["error"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    order.Status,
		"paymentId": paymentID,
		"updatedAt": order.UpdatedAt,
		"source":    "order",
	})
}
