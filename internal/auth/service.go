package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"

	"github.com/gosuda/adbroker/internal/domain"
)

// ErrInvalidAPIKey is returned when an API key is not found or the hash does not match.
var ErrInvalidAPIKey = errors.New("auth: invalid API key")

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

const (
	apiKeyPrefix    = "adbk_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 8  // first 8 chars of the full key used for lookup
)

// Service issues and validates principal credentials.
type Service struct {
	principals domain.PrincipalRepository
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(principals domain.PrincipalRepository, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		principals: principals,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// TokenPair is one access/refresh token issuance.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssueTokens mints a token pair for an authenticated principal.
func (s *Service) IssueTokens(tenantID, principalID uuid.UUID) (*TokenPair, error) {
	access, err := IssueAccessToken(s.jwtSecret, tenantID, principalID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.IssueTokens: %w", err)
	}

	refresh, err := IssueRefreshToken(s.jwtSecret, tenantID, principalID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.IssueTokens: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", err)
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, fmt.Errorf("auth.Refresh: not a refresh token: %w", ErrInvalidToken)
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", ErrInvalidToken)
	}
	principalID, err := uuid.Parse(claims.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", ErrInvalidToken)
	}

	return s.IssueTokens(tenantID, principalID)
}

// GenerateAPIKey creates a new API key, stores the argon2id hash, and returns
// the raw key (shown to the caller once). Key format: "adbk_" + 32 random hex chars.
func (s *Service) GenerateAPIKey(ctx context.Context, tenantID, principalID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	keyHash, err := hashSecret(rawKey)
	if err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	key := &domain.APIKey{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PrincipalID: principalID,
		Name:        name,
		KeyHash:     keyHash,
		Prefix:      rawKey[:apiKeyPrefixLen],
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.principals.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	return rawKey, key, nil
}

// ValidateAPIKey checks an API key by looking up the prefix (first 8 chars)
// and verifying the argon2id hash. Returns the associated principal and key record.
func (s *Service) ValidateAPIKey(ctx context.Context, rawKey string) (*domain.Principal, *domain.APIKey, error) {
	if len(rawKey) < apiKeyPrefixLen {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	// Pass uuid.Nil to search across all tenants; the tenant is derived
	// from the key itself.
	apiKey, err := s.principals.GetAPIKeyByPrefix(ctx, uuid.Nil, rawKey[:apiKeyPrefixLen])
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	if !verifySecret(rawKey, apiKey.KeyHash) {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: key expired: %w", ErrInvalidAPIKey)
	}

	principal, err := s.principals.GetByID(ctx, apiKey.TenantID, apiKey.PrincipalID)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", err)
	}

	// Update last used timestamp (fire and forget).
	if updateErr := s.principals.UpdateAPIKeyLastUsed(ctx, apiKey.ID); updateErr != nil {
		log.Warn().Err(updateErr).Str("api_key_id", apiKey.ID.String()).Msg("auth.ValidateAPIKey: failed to update last_used_at")
	}

	return principal, apiKey, nil
}

// hashSecret generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func hashSecret(secret string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// verifySecret checks a secret against an argon2id hash.
func verifySecret(secret, encoded string) bool {
	var saltHex, hashHex string
	for i := range len(encoded) {
		if encoded[i] == '$' {
			saltHex = encoded[:i]
			hashHex = encoded[i+1:]
			break
		}
	}

	if saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	expectedHash, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expectedHash) == 1
}
