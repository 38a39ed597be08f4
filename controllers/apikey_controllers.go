package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/events"
	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/services"
	"github.com/yeremiapane/pix-checkout/utils"
)

// MaxActiveProductionKeys caps how many production credentials may be
// active at once.
const MaxActiveProductionKeys = 5

type ApiKeyController struct {
	DB       *gorm.DB
	KeyStore *services.KeyStoreService
}

func NewApiKeyController(db *gorm.DB, keystore *services.KeyStoreService) *ApiKeyController {
	return &ApiKeyController{DB: db, KeyStore: keystore}
}

// ListKeys returns every credential, secrets masked.
func (kc *ApiKeyController) ListKeys(c *gin.Context) {
	var keys []models.ApiKey
	if err := kc.DB.Order("priority ASC, id ASC").Find(&keys).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	for i := range keys {
		keys[i].AccessToken = maskSecret(keys[i].AccessToken)
	}
	utils.RespondJSON(c, http.StatusOK, "API keys", keys)
}

// AddKey registers a new credential.
func (kc *ApiKeyController) AddKey(c *gin.Context) {
	type reqBody struct {
		Name        string `json:"name" binding:"required"`
		AccessToken string `json:"access_token" binding:"required"`
		Sandbox     *bool  `json:"sandbox" binding:"required"`
		Active      bool   `json:"active"`
		Priority    int    `json:"priority"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Active && !*body.Sandbox {
		if err := kc.checkProductionCap(0); err != nil {
			utils.RespondError(c, http.StatusConflict, err)
			return
		}
	}

	key := models.ApiKey{
		Name:        body.Name,
		AccessToken: body.AccessToken,
		Sandbox:     *body.Sandbox,
		Active:      body.Active,
		Priority:    body.Priority,
	}
	if key.Priority == 0 {
		key.Priority = 1
	}
	if err := kc.DB.Create(&key).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	kc.KeyStore.Invalidate()
	events.BroadcastKeyUpdate()
	key.AccessToken = maskSecret(key.AccessToken)
	utils.RespondJSON(c, http.StatusCreated, "API key added", key)
}

// ToggleKey flips a credential's active flag.
func (kc *ApiKeyController) ToggleKey(c *gin.Context) {
	id := c.Param("key_id")

	var key models.ApiKey
	if err := kc.DB.First(&key, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("api key not found"))
		return
	}

	if !key.Active && !key.Sandbox {
		if err := kc.checkProductionCap(key.ID); err != nil {
			utils.RespondError(c, http.StatusConflict, err)
			return
		}
	}

	key.Active = !key.Active
	if err := kc.DB.Save(&key).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	kc.KeyStore.Invalidate()
	events.BroadcastKeyUpdate()
	key.AccessToken = maskSecret(key.AccessToken)
	utils.RespondJSON(c, http.StatusOK, "API key toggled", key)
}

// PinKey pins a credential so it wins over priority ordering.
func (kc *ApiKeyController) PinKey(c *gin.Context) {
	id := c.Param("key_id")

	var key models.ApiKey
	if err := kc.DB.First(&key, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("api key not found"))
		return
	}

	setting := models.AppSetting{Key: models.SettingPinnedKey, Value: strconv.Itoa(int(key.ID))}
	err := kc.DB.Where("`key` = ?", models.SettingPinnedKey).
		Assign(map[string]interface{}{"value": setting.Value}).
		FirstOrCreate(&setting).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	kc.KeyStore.Invalidate()
	events.BroadcastKeyUpdate()
	utils.RespondJSON(c, http.StatusOK, "API key pinned", gin.H{"key_id": key.ID})
}

// UnpinKey removes the pin; resolution falls back to priority order.
func (kc *ApiKeyController) UnpinKey(c *gin.Context) {
	if err := kc.DB.Where("`key` = ?", models.SettingPinnedKey).Delete(&models.AppSetting{}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	kc.KeyStore.Invalidate()
	events.BroadcastKeyUpdate()
	utils.RespondJSON(c, http.StatusOK, "API key unpinned", nil)
}

func (kc *ApiKeyController) checkProductionCap(excludeID uint) error {
	var count int64
	if err := kc.DB.Model(&models.ApiKey{}).
		Where("active = ? AND sandbox = ? AND id <> ?", true, false, excludeID).
		Count(&count).Error; err != nil {
		return err
	}
	if count >= MaxActiveProductionKeys {
		return fmt.Errorf("at most %d production keys may be active", MaxActiveProductionKeys)
	}
	return nil
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
