package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/events"
	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/utils"
)

// OverdueChecker sweeps PENDING pix orders whose payable code expired
// and marks them OVERDUE. The gateway also reports overdue charges via
// webhook; the sweep covers deliveries that never arrive.
type OverdueChecker struct {
	db       *gorm.DB
	Interval time.Duration
	stop     chan struct{}
}

func NewOverdueChecker(db *gorm.DB) *OverdueChecker {
	return &OverdueChecker{
		db:       db,
		Interval: 5 * time.Minute,
		stop:     make(chan struct{}),
	}
}

func (oc *OverdueChecker) Start() {
	go oc.loop()
	utils.InfoLogger.Println("overdue checker started")
}

func (oc *OverdueChecker) Stop() {
	close(oc.stop)
}

func (oc *OverdueChecker) loop() {
	ticker := time.NewTicker(oc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-oc.stop:
			return
		case <-ticker.C:
			oc.CheckExpiredOrders()
		}
	}
}

// CheckExpiredOrders runs one sweep. Exported so tests and the admin
// surface can trigger it directly.
func (oc *OverdueChecker) CheckExpiredOrders() {
	var orders []models.Order
	now := time.Now()

	err := oc.db.Where("status = ? AND payment_method = ? AND pix_expires_at IS NOT NULL AND pix_expires_at < ?",
		models.StatusPending, models.MethodPix, now).Find(&orders).Error
	if err != nil {
		utils.ErrorLogger.Printf("error checking expired orders: %v", err)
		return
	}

	for i := range orders {
		order := &orders[i]
		order.Status = models.StatusOverdue
		order.UpdatedAt = now
		if err := oc.db.Save(order).Error; err != nil {
			utils.ErrorLogger.Printf("error marking order %d overdue: %v", order.ID, err)
			continue
		}
		events.BroadcastOrderUpdate(*order)
		utils.InfoLogger.Printf("order %d marked overdue (pix code expired)", order.ID)
	}
}
