package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

const testKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestEncryptorRoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testKeyHex)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte(`{"apiKey":"secret"}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if strings.Contains(ciphertext, "secret") {
		t.Fatal("ciphertext must not contain plaintext")
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(plaintext) != `{"apiKey":"secret"}` {
		t.Fatalf("Decrypt() = %q, want original payload", plaintext)
	}
}

func TestEncryptorRejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testKeyHex)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := []byte(ciphertext)
	tampered[len(tampered)-5] ^= 'x'
	if _, err := enc.Decrypt(string(tampered)); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
}

func TestEncryptorRejectsShortKey(t *testing.T) {
	t.Parallel()

	if _, err := NewEncryptor("deadbeef"); err == nil {
		t.Fatal("expected error for short key")
	}
}

type fakeCredentialRepo struct {
	getFn    func(ctx context.Context, tenantID string, channel domain.Channel) (*domain.TenantCredential, error)
	upsertFn func(ctx context.Context, cred *domain.TenantCredential) error
}

func (f *fakeCredentialRepo) GetByTenantAndChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.TenantCredential, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, channel)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCredentialRepo) Upsert(ctx context.Context, cred *domain.TenantCredential) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, cred)
	}
	return nil
}

var _ CredentialRepository = (*fakeCredentialRepo)(nil)

func TestStoreResolve(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testKeyHex)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	sealed, err := enc.Encrypt([]byte(`{"apiKey":"key-1","senderId":"ORG"}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	repo := &fakeCredentialRepo{
		getFn: func(ctx context.Context, tenantID string, channel domain.Channel) (*domain.TenantCredential, error) {
			return &domain.TenantCredential{
				TenantID:   tenantID,
				Channel:    channel,
				Ciphertext: sealed,
			}, nil
		},
	}

	store, err := NewStore(repo, enc)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	creds, err := store.Resolve(context.Background(), "t1", domain.ChannelSMS)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if creds.APIKey != "key-1" {
		t.Fatalf("APIKey = %q, want key-1", creds.APIKey)
	}
	if creds.SenderID != "ORG" {
		t.Fatalf("SenderID = %q, want ORG", creds.SenderID)
	}
}

func TestStoreSaveRoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testKeyHex)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	var stored *domain.TenantCredential
	repo := &fakeCredentialRepo{
		upsertFn: func(ctx context.Context, cred *domain.TenantCredential) error {
			stored = cred
			return nil
		},
		getFn: func(ctx context.Context, tenantID string, channel domain.Channel) (*domain.TenantCredential, error) {
			if stored == nil {
				return nil, domain.ErrNotFound
			}
			return stored, nil
		},
	}

	store, err := NewStore(repo, enc)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Save(context.Background(), "t1", domain.ChannelEmail, "key-9", "ACME"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if stored == nil {
		t.Fatal("Save() should upsert a row")
	}
	if stored.TenantID != "t1" || stored.Channel != domain.ChannelEmail {
		t.Fatalf("stored row = %+v", stored)
	}
	if strings.Contains(stored.Ciphertext, "key-9") {
		t.Fatal("stored ciphertext must not contain the plaintext key")
	}

	creds, err := store.Resolve(context.Background(), "t1", domain.ChannelEmail)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if creds.APIKey != "key-9" || creds.SenderID != "ACME" {
		t.Fatalf("Resolve() = %+v, want the saved credentials back", creds)
	}
}

func TestStoreSaveRequiresAPIKey(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testKeyHex)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}
	store, err := NewStore(&fakeCredentialRepo{
		upsertFn: func(ctx context.Context, cred *domain.TenantCredential) error {
			t.Fatal("no upsert for an empty api key")
			return nil
		},
	}, enc)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Save(context.Background(), "t1", domain.ChannelSMS, "  ", "ACME"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Save() error = %v, want ErrValidation", err)
	}
}

func TestStoreResolveMissingReturnsZero(t *testing.T) {
	t.Parallel()

	enc, err := NewEncryptor(testKeyHex)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	store, err := NewStore(&fakeCredentialRepo{}, enc)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	creds, err := store.Resolve(context.Background(), "t1", domain.ChannelEmail)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if creds.APIKey != "" || creds.SenderID != "" {
		t.Fatalf("Resolve() = %+v, want zero credentials", creds)
	}
}
