package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/sender"
)

// CredentialRepository loads and stores encrypted credential rows.
type CredentialRepository interface {
	GetByTenantAndChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.TenantCredential, error)
	Upsert(ctx context.Context, cred *domain.TenantCredential) error
}

type credentialPayload struct {
	APIKey   string `json:"apiKey"`
	SenderID string `json:"senderId,omitempty"`
}

// Store resolves decrypted gateway credentials for a tenant and channel.
type Store struct {
	repo CredentialRepository
	enc  *Encryptor
}

func NewStore(repo CredentialRepository, enc *Encryptor) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("credential repository is required")
	}
	if enc == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	return &Store{repo: repo, enc: enc}, nil
}

// Resolve returns the decrypted credentials for one leg. A missing row yields
// zero credentials rather than an error; the gateway then sends without
// tenant-specific auth.
func (s *Store) Resolve(ctx context.Context, tenantID string, channel domain.Channel) (sender.Credentials, error) {
	row, err := s.repo.GetByTenantAndChannel(ctx, tenantID, channel)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return sender.Credentials{}, nil
		}
		return sender.Credentials{}, fmt.Errorf("failed to load credential: %w", err)
	}

	plaintext, err := s.enc.Decrypt(row.Ciphertext)
	if err != nil {
		return sender.Credentials{}, err
	}

	var payload credentialPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return sender.Credentials{}, fmt.Errorf("invalid credential payload: %w", err)
	}

	return sender.Credentials{
		APIKey:   payload.APIKey,
		SenderID: payload.SenderID,
	}, nil
}

// Seal encrypts a credential payload for persistence.
func (s *Store) Seal(apiKey, senderID string) (string, error) {
	plaintext, err := json.Marshal(credentialPayload{APIKey: apiKey, SenderID: senderID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential payload: %w", err)
	}
	return s.enc.Encrypt(plaintext)
}

// Save seals and stores the credentials for one tenant leg, replacing any
// previous row for the same tenant and channel.
func (s *Store) Save(ctx context.Context, tenantID string, channel domain.Channel, apiKey, senderID string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w: api key is required", domain.ErrValidation)
	}

	ciphertext, err := s.Seal(apiKey, senderID)
	if err != nil {
		return err
	}

	return s.repo.Upsert(ctx, &domain.TenantCredential{
		TenantID:   tenantID,
		Channel:    channel,
		Ciphertext: ciphertext,
	})
}
