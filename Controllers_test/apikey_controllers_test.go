package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/controllers"
	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/services"
	"github.com/yeremiapane/pix-checkout/utils"
)

func setupTestDBForKeys() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	if err := db.AutoMigrate(&models.ApiKey{}, &models.AppSetting{}); err != nil {
		panic(err)
	}
	return db
}

func setupKeyRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	keyCtrl := controllers.NewApiKeyController(db, services.NewKeyStoreService(db))
	router.GET("/admin/api-keys", keyCtrl.ListKeys)
	router.POST("/admin/api-keys", keyCtrl.AddKey)
	router.PATCH("/admin/api-keys/:key_id/toggle", keyCtrl.ToggleKey)
	router.POST("/admin/api-keys/:key_id/pin", keyCtrl.PinKey)
	router.DELETE("/admin/api-keys/:key_id/pin", keyCtrl.UnpinKey)
	return router
}

func postKey(router *gin.Engine, payload map[string]interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", "/admin/api-keys", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAddKey_MasksSecretInResponse(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForKeys()
	router := setupKeyRouter(db)

	w := postKey(router, map[string]interface{}{
		"name":         "sandbox principal",
		"access_token": "aact_sandbox_0123456789",
		"sandbox":      true,
		"active":       true,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "aact...6789", data["access_token"])

	// The stored row keeps the real secret.
	var stored models.ApiKey
	db.First(&stored)
	assert.Equal(t, "aact_sandbox_0123456789", stored.AccessToken)
}

func TestAddKey_ProductionCap(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForKeys()
	router := setupKeyRouter(db)

	for i := 1; i <= controllers.MaxActiveProductionKeys; i++ {
		w := postKey(router, map[string]interface{}{
			"name":         fmt.Sprintf("prod %d", i),
			"access_token": fmt.Sprintf("aact_prod_%d_0123456789", i),
			"sandbox":      false,
			"active":       true,
			"priority":     i,
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	}

	w := postKey(router, map[string]interface{}{
		"name":         "prod overflow",
		"access_token": "aact_prod_overflow_0123456789",
		"sandbox":      false,
		"active":       true,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Inactive production keys are still accepted past the cap.
	w = postKey(router, map[string]interface{}{
		"name":         "prod reserve",
		"access_token": "aact_prod_reserve_0123456789",
		"sandbox":      false,
		"active":       false,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Sandbox keys are never counted against the cap.
	w = postKey(router, map[string]interface{}{
		"name":         "sandbox extra",
		"access_token": "aact_sandbox_extra_0123456789",
		"sandbox":      true,
		"active":       true,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestToggleKey_EnforcesProductionCap(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForKeys()
	router := setupKeyRouter(db)

	// The model's gorm default tags drop zero values on Create; force the
	// seeded sandbox/active values after each insert.
	for i := 1; i <= controllers.MaxActiveProductionKeys; i++ {
		key := models.ApiKey{
			Name:        fmt.Sprintf("prod %d", i),
			AccessToken: fmt.Sprintf("aact_prod_%d_0123456789", i),
			Sandbox:     false,
			Active:      true,
			Priority:    i,
		}
		db.Create(&key)
		db.Model(&key).Updates(map[string]interface{}{"sandbox": false, "active": true})
	}
	reserve := models.ApiKey{
		Name:        "prod reserve",
		AccessToken: "aact_prod_reserve_0123456789",
		Sandbox:     false,
		Active:      false,
		Priority:    9,
	}
	db.Create(&reserve)
	db.Model(&reserve).Updates(map[string]interface{}{"sandbox": false, "active": false})

	url := fmt.Sprintf("/admin/api-keys/%d/toggle", reserve.ID)
	req, _ := http.NewRequest("PATCH", url, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Deactivating an active key frees a slot for the reserve.
	req, _ = http.NewRequest("PATCH", "/admin/api-keys/1/toggle", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req, _ = http.NewRequest("PATCH", url, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPinAndUnpinKey(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForKeys()
	router := setupKeyRouter(db)

	key := models.ApiKey{Name: "sandbox", AccessToken: "aact_sandbox_0123456789", Sandbox: true, Active: true, Priority: 2}
	db.Create(&key)

	req, _ := http.NewRequest("POST", fmt.Sprintf("/admin/api-keys/%d/pin", key.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var setting models.AppSetting
	assert.NoError(t, db.Where("`key` = ?", models.SettingPinnedKey).First(&setting).Error)
	assert.Equal(t, fmt.Sprint(key.ID), setting.Value)

	req, _ = http.NewRequest("DELETE", fmt.Sprintf("/admin/api-keys/%d/pin", key.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	err := db.Where("`key` = ?", models.SettingPinnedKey).First(&setting).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPinKey_UnknownID(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForKeys()
	router := setupKeyRouter(db)

	req, _ := http.NewRequest("POST", "/admin/api-keys/42/pin", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
