package services

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/pix-checkout/models"
	"github.com/yeremiapane/pix-checkout/utils"
)

// KeyCacheTTL is how long a resolved credential stays cached per
// environment. The cache is an optimization only; resolution is correct
// with it disabled.
const KeyCacheTTL = 5 * time.Minute

type cachedKey struct {
	key       *models.ApiKey
	expiresAt time.Time
}

// KeyStoreService resolves which gateway credential is active for an
// environment. Resolution order: pinned setting first, then lowest
// priority among active keys. Results are cached in memory per process.
type KeyStoreService struct {
	db    *gorm.DB
	now   func() time.Time
	mu    sync.Mutex
	cache map[bool]cachedKey // keyed by sandbox flag
}

func NewKeyStoreService(db *gorm.DB) *KeyStoreService {
	return &KeyStoreService{
		db:    db,
		now:   time.Now,
		cache: make(map[bool]cachedKey),
	}
}

// SetClock swaps the time source. Tests use this to force cache expiry.
func (ks *KeyStoreService) SetClock(now func() time.Time) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.now = now
}

// GetActiveKey returns the credential to use for the environment, or
// (nil, nil) when no active credential matches. Store errors propagate.
func (ks *KeyStoreService) GetActiveKey(sandbox bool) (*models.ApiKey, error) {
	ks.mu.Lock()
	if entry, ok := ks.cache[sandbox]; ok && ks.now().Before(entry.expiresAt) {
		key := entry.key
		ks.mu.Unlock()
		return key, nil
	}
	ks.mu.Unlock()

	key, err := ks.resolve(sandbox)
	if err != nil {
		return nil, err
	}

	if key != nil {
		ks.mu.Lock()
		ks.cache[sandbox] = cachedKey{key: key, expiresAt: ks.now().Add(KeyCacheTTL)}
		ks.mu.Unlock()
	}

	return key, nil
}

func (ks *KeyStoreService) resolve(sandbox bool) (*models.ApiKey, error) {
	// A pinned credential wins when it exists, is active and matches the
	// requested environment.
	var setting models.AppSetting
	err := ks.db.Where("`key` = ?", models.SettingPinnedKey).First(&setting).Error
	if err == nil {
		if id, convErr := strconv.Atoi(setting.Value); convErr == nil {
			var pinned models.ApiKey
			if err := ks.db.First(&pinned, id).Error; err == nil {
				if pinned.Active && pinned.Sandbox == sandbox {
					return &pinned, nil
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to load pinned api key: %w", err)
			}
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read pinned key setting: %w", err)
	}

	var key models.ApiKey
	err = ks.db.Where("active = ? AND sandbox = ?", true, sandbox).
		Order("priority ASC, id ASC").
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active api key: %w", err)
	}
	return &key, nil
}

// FallbackKeys returns the remaining active credentials for the
// environment in priority order, excluding the primary. The orchestrator
// walks this list when the primary fails.
func (ks *KeyStoreService) FallbackKeys(sandbox bool, excludeID uint) ([]models.ApiKey, error) {
	var keys []models.ApiKey
	err := ks.db.Where("active = ? AND sandbox = ? AND id <> ?", true, sandbox, excludeID).
		Order("priority ASC, id ASC").
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fallback api keys: %w", err)
	}
	return keys, nil
}

// Invalidate drops every cached resolution. Called by all credential
// mutations (add, toggle, pin changes).
func (ks *KeyStoreService) Invalidate() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.cache = make(map[bool]cachedKey)
	if utils.InfoLogger != nil {
		utils.InfoLogger.Println("api key cache invalidated")
	}
}
