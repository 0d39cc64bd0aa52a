// Copyright (c) 2026 Veriface Labs. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Signing, Key Comparison) from
// the domain logic. It acts as an Infrastructure service injected into the
// credential issuer via constructor.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired marks a structurally valid token whose 'exp' has passed.
// Callers distinguish it from other parse failures to report Expired
// rather than Invalid.
var ErrTokenExpired = errors.New("sec: token expired")

// SessionClaims represents the payload embedded inside a session token.
//
// # Why custom claims?
//
// The subject, token ID (jti), and scope are everything a resource server
// needs to authorize a session holder WITHOUT calling back into Veriface,
// except for the revocation watermark check which is deliberately
// server-side only.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Scope names what the session is good for (e.g. "session").
	Scope string `json:"scope"`
}

// TokenService handles generation and verification of session tokens using RS256.
//
// The signature covers every claim, so neither subject, expiry, token ID nor
// scope can be tampered with after issuance.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewTokenService creates a new TokenService.
// It reads RSA keys from the provided filesystem paths.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
	}, nil
}

// NewTokenServiceFromKeys constructs a TokenService from an in-memory key pair.
// Used by tests and by deployments that source keys from a KMS instead of disk.
func NewTokenServiceFromKeys(privateKey *rsa.PrivateKey, issuer string) *TokenService {
	return &TokenService{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
	}
}

// Sign creates a signed session token string.
//
// # Parameters
//   - subject: The user identifier the session belongs to.
//   - tokenID: Unique token ID (jti) used for audit and revocation.
//   - scope: What the session authorizes.
//   - issuedAt: Issuance instant; expiry is issuedAt + timeToLive.
//   - timeToLive: The duration before the token expires.
func (service *TokenService) Sign(subject, tokenID, scope string, issuedAt time.Time, timeToLive time.Duration) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   subject,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(timeToLive)),
		},
		Scope: scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and validity of a session token string.
//
// Returns [ErrTokenExpired] when the only defect is an elapsed 'exp' claim,
// so the caller can report Expired instead of Invalid.
func (service *TokenService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	}, jwt.WithIssuer(service.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}
