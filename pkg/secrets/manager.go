package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProviderType enumerates supported secret backends.
type ProviderType string

const (
	ProviderNone  ProviderType = ""
	ProviderVault ProviderType = "vault"
	ProviderAWS   ProviderType = "aws"
	ProviderGCP   ProviderType = "gcp"
)

// SecretType classifies a secret for audit logs.
type SecretType string

const (
	SecretDatabase   SecretType = "database_credentials"
	SecretClassifier SecretType = "classifier_api_key"
	SecretEmail      SecretType = "email_api_key"
	SecretTwilio     SecretType = "twilio_credentials"
	SecretStorage    SecretType = "storage_credentials"
)

// defaultKey is used when a reference names no key and the payload was not a JSON object.
const defaultKey = "value"

var (
	ErrProviderNotConfigured = errors.New("secrets: provider not configured")
	ErrInvalidReference      = errors.New("secrets: invalid reference")
	ErrKeyNotFound           = errors.New("secrets: key not found")
)

// Secret is a resolved secret payload.
type Secret struct {
	Data      map[string]string
	Version   string
	FetchedAt time.Time
}

// Value returns a non-empty entry from the payload.
func (s Secret) Value(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok && v != ""
}

// Config selects and configures the secret backend.
type Config struct {
	Provider ProviderType
	CacheTTL time.Duration
	Vault    VaultConfig
	AWS      AWSConfig
	GCP      GCPConfig
}

type provider interface {
	Name() ProviderType
	Fetch(ctx context.Context, ref Reference) (Secret, error)
	Close() error
}

// Manager resolves references against one backend and caches the results.
type Manager struct {
	provider provider
	cacheTTL time.Duration
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	secret    Secret
	expiresAt time.Time
}

// NewManager creates a Manager for the configured provider.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	var (
		prov provider
		err  error
	)

	switch cfg.Provider {
	case ProviderNone:
		return nil, ErrProviderNotConfigured
	case ProviderVault:
		prov, err = newVaultProvider(cfg.Vault)
	case ProviderAWS:
		prov, err = newAWSProvider(ctx, cfg.AWS)
	case ProviderGCP:
		prov, err = newGCPProvider(ctx, cfg.GCP)
	default:
		err = fmt.Errorf("secrets: unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return newManager(prov, cfg.CacheTTL), nil
}

func newManager(prov provider, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Manager{
		provider: prov,
		cacheTTL: ttl,
		now:      time.Now,
		cache:    make(map[string]cachedSecret),
	}
}

// Close releases the provider client.
func (m *Manager) Close() error {
	return m.provider.Close()
}

// GetSecret resolves the full payload behind ref. Concurrent lookups of the
// same secret share one provider call.
func (m *Manager) GetSecret(ctx context.Context, ref Reference) (Secret, error) {
	if ref.Path == "" {
		return Secret{}, ErrInvalidReference
	}
	if ref.Provider != ProviderNone && ref.Provider != m.provider.Name() {
		return Secret{}, fmt.Errorf("secrets: reference %q is for %q but manager uses %q", ref.Name, ref.Provider, m.provider.Name())
	}

	key := ref.cacheKey()
	if s, ok := m.cached(key); ok {
		return s, nil
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		s, err := m.provider.Fetch(ctx, ref)
		if err != nil {
			return Secret{}, err
		}
		s.FetchedAt = m.now().UTC()
		m.store(key, s)
		return s, nil
	})

	fields := []zap.Field{
		zap.String("secret_name", ref.Name),
		zap.String("secret_type", string(ref.Type)),
		zap.String("provider", string(m.provider.Name())),
	}
	if err != nil {
		logger.Warn("secret fetch failed", append(fields, zap.Error(err))...)
		return Secret{}, err
	}

	s := v.(Secret)
	logger.Debug("secret fetched", append(fields, zap.String("version", s.Version))...)
	return clone(s), nil
}

// GetString resolves a single value. A reference without a key reads the
// payload's default entry.
func (m *Manager) GetString(ctx context.Context, ref Reference) (string, error) {
	s, err := m.GetSecret(ctx, ref)
	if err != nil {
		return "", err
	}

	key := ref.Key
	if key == "" {
		key = defaultKey
	}
	if v, ok := s.Value(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s in %s", ErrKeyNotFound, key, ref.Name)
}

func (m *Manager) cached(key string) (Secret, bool) {
	m.mu.RLock()
	entry, ok := m.cache[key]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.expiresAt) {
		return Secret{}, false
	}
	return clone(entry.secret), true
}

func (m *Manager) store(key string, s Secret) {
	m.mu.Lock()
	m.cache[key] = cachedSecret{secret: clone(s), expiresAt: m.now().Add(m.cacheTTL)}
	m.mu.Unlock()
}

func clone(src Secret) Secret {
	dst := src
	dst.Data = make(map[string]string, len(src.Data))
	for k, v := range src.Data {
		dst.Data[k] = v
	}
	return dst
}

// decodePayload reads a JSON object of strings, or keeps raw bytes under the
// default key.
func decodePayload(data []byte) map[string]string {
	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err == nil {
		return asMap
	}
	return map[string]string{defaultKey: string(data)}
}
