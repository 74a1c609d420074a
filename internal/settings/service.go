// Package settings stores the analysis-service API key, encrypted per identity.
package settings

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/recallcontext/backend/internal/apperr"
	"github.com/recallcontext/backend/internal/models"
)

// Store is the persistence the service needs.
type Store interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error)
	Upsert(ctx context.Context, userID, encryptedAPIKey, iv string) error
}

// Cipher encrypts credentials for an identity.
type Cipher interface {
	Encrypt(secret, identity string) (ciphertext, iv string, err error)
	Decrypt(ciphertext, iv, identity string) (string, error)
}

// Service manages the identity-keyed credential.
type Service struct {
	store  Store
	cipher Cipher
	logger *zap.Logger
}

// NewService creates a settings service.
func NewService(store Store, cipher Cipher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cipher: cipher, logger: logger}
}

// SaveAPIKey encrypts apiKey and creates or overwrites the identity's credential.
func (s *Service) SaveAPIKey(ctx context.Context, identity, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apperr.InvalidInput("api_key is required")
	}
	ct, iv, err := s.cipher.Encrypt(apiKey, identity)
	if err != nil {
		s.logger.Error("encrypt api key failed", zap.String("user_id", identity), zap.Error(err))
		return err
	}
	if err := s.store.Upsert(ctx, identity, ct, iv); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	s.logger.Info("api key saved", zap.String("user_id", identity))
	return nil
}

// APIKey returns the decrypted credential, or a CREDENTIAL_MISSING error when none is configured.
func (s *Service) APIKey(ctx context.Context, identity string) (string, error) {
	settings, err := s.store.GetByUserID(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("load api key: %w", err)
	}
	if !settings.HasAPIKey() {
		return "", apperr.CredentialMissing()
	}
	key, err := s.cipher.Decrypt(settings.EncryptedAPIKey, settings.EncryptionIV, identity)
	if err != nil {
		s.logger.Error("decrypt api key failed", zap.String("user_id", identity), zap.Error(err))
		return "", err
	}
	return key, nil
}

// IsConfigured reports whether the identity has a real credential stored.
func (s *Service) IsConfigured(ctx context.Context, identity string) (bool, error) {
	settings, err := s.store.GetByUserID(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("load api key: %w", err)
	}
	return settings.HasAPIKey(), nil
}

// DeleteAPIKey replaces both stored fields with the not-configured sentinel.
func (s *Service) DeleteAPIKey(ctx context.Context, identity string) error {
	settings, err := s.store.GetByUserID(ctx, identity)
	if err != nil {
		return fmt.Errorf("load api key: %w", err)
	}
	if settings == nil {
		return apperr.NotFound("API key not found")
	}
	if err := s.store.Upsert(ctx, identity, models.NotConfigured, models.NotConfigured); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	s.logger.Info("api key deleted", zap.String("user_id", identity))
	return nil
}
