package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/triage-desk/internal/config"
	"github.com/spec-kit/triage-desk/internal/domain"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrMissingKey        = errors.New("no verification key configured")
)

// CredentialVerifier validates bearer credentials issued by the identity provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) (*domain.IdentityClaims, error)
}

// sessionClaims is the session token payload. The provider's claim template
// copies the user's emails, names and public metadata into the token.
type sessionClaims struct {
	EmailAddresses []domain.EmailAddress `json:"email_addresses,omitempty"`
	FirstName      *string               `json:"first_name,omitempty"`
	LastName       *string               `json:"last_name,omitempty"`
	PublicMetadata domain.PublicMetadata `json:"public_metadata"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies provider session tokens locally with the configured key.
type JWTVerifier struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

// NewJWTVerifier builds a verifier from identity settings. RS256 with the PEM
// public key is preferred; HS256 with the shared secret is used otherwise.
func NewJWTVerifier(cfg config.IdentityConfig) (*JWTVerifier, error) {
	opts := []jwt.ParserOption{jwt.WithLeeway(cfg.Leeway()), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	switch {
	case strings.TrimSpace(cfg.JWTPublicKey) != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse identity public key: %w", err)
		}
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		return &JWTVerifier{
			parser:  jwt.NewParser(opts...),
			keyFunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		}, nil
	case cfg.JWTSecret != "":
		secret := []byte(cfg.JWTSecret)
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		return &JWTVerifier{
			parser:  jwt.NewParser(opts...),
			keyFunc: func(*jwt.Token) (interface{}, error) { return secret, nil },
		}, nil
	default:
		return &JWTVerifier{
			parser:  jwt.NewParser(opts...),
			keyFunc: func(*jwt.Token) (interface{}, error) { return nil, ErrMissingKey },
		}, nil
	}
}

// Verify validates the credential and returns its claims. It has no side effects.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (*domain.IdentityClaims, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}

	claims := &sessionClaims{}
	parsed, err := v.parser.ParseWithClaims(credential, claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, ErrMissingKey) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, ErrMissingKey)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidCredential)
	}

	return &domain.IdentityClaims{
		ExternalID:     claims.Subject,
		EmailAddresses: claims.EmailAddresses,
		FirstName:      claims.FirstName,
		LastName:       claims.LastName,
		Metadata:       claims.PublicMetadata,
	}, nil
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidCredential
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}
