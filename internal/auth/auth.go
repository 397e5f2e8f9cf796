// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package auth gates /v1/* behind a single opt-in header and mints the
// short-lived provider credentials the realtime upgrade inspects
// (spec.md §6 "Authentication"), grounded on the teacher's per-connection
// WebSocket credential headers (AssistantProviderWebsocket.Headers) and
// its golang-jwt/jwt/v5 dependency.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rapidaai/gateway/internal/commons"
)

// Gate checks a single opt-in Authorization/X-API-Key header against the
// configured expectation. It carries no state beyond its configuration,
// so it can be constructed once and shared across requests.
type Gate struct {
	headerName  string
	expectedKey string
	required    bool
}

// NewGate constructs a Gate. expectedKey is the value that satisfies
// either the bearer token or the configured API-key header; an empty
// expectedKey with required=true rejects every request, matching "auth
// enabled but no key configured" as a misconfiguration rather than an
// open gate.
func NewGate(headerName, expectedKey string, required bool) *Gate {
	if headerName == "" {
		headerName = "x-api-key"
	}
	return &Gate{headerName: headerName, expectedKey: expectedKey, required: required}
}

// Allow reports whether the supplied header values satisfy the gate.
// authorizationHeader is the raw `Authorization` header value (expected
// form `Bearer <token>`); apiKeyHeader is the value of the configured
// API-key header.
func (g *Gate) Allow(authorizationHeader, apiKeyHeader string) bool {
	if !g.required {
		return true
	}
	if g.expectedKey == "" {
		return false
	}
	if token, ok := strings.CutPrefix(authorizationHeader, "Bearer "); ok && token == g.expectedKey {
		return true
	}
	return apiKeyHeader != "" && apiKeyHeader == g.expectedKey
}

// HeaderName returns the configured API-key header name, for middleware
// that needs to read it off the request.
func (g *Gate) HeaderName() string { return g.headerName }

// EphemeralClaims is the payload sealed into a realtime ephemeral
// credential: scoped to one model and provider so a leaked token cannot
// be replayed against a different session shape.
type EphemeralClaims struct {
	jwt.RegisteredClaims
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// Minter issues and verifies ephemeral realtime credentials sealed with
// HMAC-SHA256 via golang-jwt/jwt/v5 (spec.md's enriched
// `POST /v1/realtime/ephemeral-key`, SPEC_FULL.md §3.1).
type Minter struct {
	secret []byte
	ttl    time.Duration
}

// NewMinter constructs a Minter. secret must be non-empty for minted
// tokens to verify; ttl defaults to 60s.
func NewMinter(secret string, ttl time.Duration) *Minter {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Minter{secret: []byte(secret), ttl: ttl}
}

// Mint issues a token scoped to model/provider, valid for the minter's TTL.
func (m *Minter) Mint(model, provider string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.ttl)
	claims := EphemeralClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Model:    model,
		Provider: provider,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, commons.Wrap(commons.ErrInternal, "signing ephemeral credential", err)
	}
	return signed, expires, nil
}

// Verify parses and validates a token minted by Mint.
func (m *Minter) Verify(raw string) (*EphemeralClaims, error) {
	claims := &EphemeralClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, commons.Wrap(commons.ErrAuthentication, "invalid ephemeral credential", err)
	}
	return claims, nil
}
