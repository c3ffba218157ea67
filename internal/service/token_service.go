package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
	"golang.org/x/crypto/hkdf"
)

const variantTokenInfo = "variant-token"

// VariantClaims is the payload of a variant token.
type VariantClaims struct {
	jwt.RegisteredClaims
	VariantID string `json:"variant_id"`
}

// TokenService signs and checks the per-variant tokens that gate the
// external grading socket.
type TokenService struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewTokenService derives the signing key from cfg.SecretKey.
func NewTokenService(cfg *config.Config, log zerolog.Logger) (*TokenService, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(cfg.SecretKey), nil, []byte(variantTokenInfo)), key); err != nil {
		return nil, fmt.Errorf("derive variant token key: %w", err)
	}
	return &TokenService{
		key:    key,
		maxAge: cfg.VariantTokenMaxAge,
		now:    time.Now,
		log:    log.With().Str("component", "token_service").Logger(),
	}, nil
}

// SignVariantToken issues a token proving knowledge of the variant secret.
func (s *TokenService) SignVariantToken(variantID int64) (string, error) {
	now := s.now()
	claims := VariantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
		},
		VariantID: strconv.FormatInt(variantID, 10),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// CheckVariantToken reports whether token is a valid, unexpired token for
// variantID. Failures are logged, never returned.
func (s *TokenService) CheckVariantToken(token string, variantID int64) bool {
	claims := &VariantClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err == nil && claims.VariantID != strconv.FormatInt(variantID, 10) {
		err = errors.New("variant mismatch")
	}
	if err == nil && (claims.IssuedAt == nil || s.now().Sub(claims.IssuedAt.Time) > s.maxAge) {
		err = errors.New("token too old")
	}
	if err != nil {
		s.log.Error().Err(err).Int64("variant_id", variantID).Msg("Variant token failed validation")
		return false
	}
	return true
}
