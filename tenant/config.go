// Package tenant provides multi-tenant configuration and management.
package tenant

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CartPulse/cartpulse-go/utils"
)

// Config holds tenant-specific configuration
type Config struct {
	TenantID          string `json:"tenantId"`
	TursoDatabase     string `json:"TURSO_DATABASE_URL"`
	TursoToken        string `json:"TURSO_AUTH_TOKEN"`
	JWTSecret         string `json:"JWT_SECRET"`
	WebhookSecret     string `json:"WEBHOOK_SECRET"`
	AdminPasswordHash string `json:"ADMIN_PASSWORD_HASH"`
	CheckoutURL       string `json:"CHECKOUT_URL"`
	ContactEmail      string `json:"CONTACT_EMAIL"`
	SQLitePath        string `json:"-"` // computed, not from JSON
}

// Registry holds the global tenant configuration
type Registry struct {
	Tenants map[string]Info `json:"tenants"`
}

// Info holds tenant metadata
type Info struct {
	TenantID     string   `json:"tenantId"`
	Domains      []string `json:"domains"`
	Status       string   `json:"status"`       // "unknown", "inactive", "active"
	DatabaseType string   `json:"databaseType"` // "turso", "sqlite3"
}

func baseDir() string {
	if dir := os.Getenv("CARTPULSE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(os.Getenv("HOME"), "cartpulse-server")
}

func registryPath() string {
	return filepath.Join(baseDir(), "config", "cartpulse", "tenants.json")
}

// LoadRegistry loads the global tenant registry
func LoadRegistry() (*Registry, error) {
	path := registryPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create default registry if it doesn't exist
		defaultRegistry := &Registry{
			Tenants: map[string]Info{
				"default": {
					TenantID:     "default",
					Domains:      []string{"*"},
					Status:       "inactive",
					DatabaseType: "",
				},
			},
		}
		return defaultRegistry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant registry: %w", err)
	}

	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse tenant registry: %w", err)
	}

	return &registry, nil
}

// SaveRegistry persists the global tenant registry
func SaveRegistry(registry *Registry) error {
	path := registryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tenant registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tenant registry: %w", err)
	}
	return nil
}

// RegisterTenant adds a tenant to the registry with inactive status
func RegisterTenant(tenantID string) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}

	if _, exists := registry.Tenants[tenantID]; exists {
		return nil
	}

	registry.Tenants[tenantID] = Info{
		TenantID:     tenantID,
		Domains:      []string{"*"},
		Status:       "inactive",
		DatabaseType: "",
	}
	return SaveRegistry(registry)
}

// LoadTenantConfig loads configuration for a specific tenant and ensures all required fields exist
func LoadTenantConfig(tenantID string) (*Config, error) {
	configPath := filepath.Join(baseDir(), "config", tenantID, "env.json")

	config := &Config{
		TenantID:   tenantID,
		SQLitePath: filepath.Join(baseDir(), "db", tenantID, "cartpulse.db"),
	}

	// Load existing config if it exists
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read tenant config: %w", err)
		}

		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse tenant config: %w", err)
		}

		if err := openConfig(config, configAESKey()); err != nil {
			return nil, err
		}
	}

	// Ensure required secrets exist
	needsSave := false

	if config.JWTSecret == "" {
		config.JWTSecret = generateRandomKey(64)
		needsSave = true
	}

	if config.WebhookSecret == "" {
		config.WebhookSecret = generateRandomKey(32)
		needsSave = true
	}

	// Save config if we generated new keys
	if needsSave {
		if err := saveConfig(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to save generated config: %w", err)
		}
	}

	config.TenantID = tenantID
	config.SQLitePath = filepath.Join(baseDir(), "db", tenantID, "cartpulse.db")

	return config, nil
}

// generateRandomKey creates a random hex string of specified length
func generateRandomKey(length int) string {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate random key: %v", err))
	}
	return hex.EncodeToString(bytes)
}

// sealedPrefix marks env.json values encrypted with CARTPULSE_AES_KEY.
const sealedPrefix = "enc:"

// configAESKey is the process-wide key sealing tenant secrets on disk.
// Empty means env.json stays plaintext (local development).
func configAESKey() string {
	return os.Getenv("CARTPULSE_AES_KEY")
}

func sealSecret(value, key string) (string, error) {
	if key == "" || value == "" || strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	encrypted, err := utils.Encrypt(value, key)
	if err != nil {
		return "", fmt.Errorf("failed to seal tenant secret: %w", err)
	}
	return sealedPrefix + encrypted, nil
}

func openSecret(value, key string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if key == "" {
		return "", fmt.Errorf("tenant config holds sealed secrets but CARTPULSE_AES_KEY is not set")
	}
	decrypted, err := utils.Decrypt(strings.TrimPrefix(value, sealedPrefix), key)
	if err != nil {
		return "", fmt.Errorf("failed to open tenant secret: %w", err)
	}
	return decrypted, nil
}

func sealConfig(config *Config, key string) (*Config, error) {
	sealed := *config
	var err error
	if sealed.TursoToken, err = sealSecret(config.TursoToken, key); err != nil {
		return nil, err
	}
	if sealed.JWTSecret, err = sealSecret(config.JWTSecret, key); err != nil {
		return nil, err
	}
	if sealed.WebhookSecret, err = sealSecret(config.WebhookSecret, key); err != nil {
		return nil, err
	}
	return &sealed, nil
}

func openConfig(config *Config, key string) error {
	var err error
	if config.TursoToken, err = openSecret(config.TursoToken, key); err != nil {
		return err
	}
	if config.JWTSecret, err = openSecret(config.JWTSecret, key); err != nil {
		return err
	}
	if config.WebhookSecret, err = openSecret(config.WebhookSecret, key); err != nil {
		return err
	}
	return nil
}

func saveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	sealed, err := sealConfig(config, configAESKey())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tenant config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tenant config: %w", err)
	}
	return nil
}
