package oidc

// Package oidc provides the OIDC/OAuth2 identity provider adapter.
// Claim extraction is configurable via JMESPath expressions so the same
// adapter serves IdPs with differing claim layouts.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/gatherhq/hub-api/internal/domain/auth"
	"github.com/gatherhq/hub-api/internal/ports"
)

// ClaimPaths holds JMESPath expressions selecting identity fields from
// the merged token/userinfo claims. Empty fields use the defaults.
type ClaimPaths struct {
	UserID      string
	Email       string
	DisplayName string
	Groups      string
}

func (c ClaimPaths) withDefaults() ClaimPaths {
	if c.UserID == "" {
		c.UserID = "sub"
	}
	if c.Email == "" {
		c.Email = "email"
	}
	if c.DisplayName == "" {
		c.DisplayName = "name"
	}
	if c.Groups == "" {
		c.Groups = "groups"
	}
	return c
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	LogoutURL    string
	Claims       ClaimPaths
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// Provider implements the AuthProvider interface using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	logoutURL  string
	httpClient *http.Client
	claims     ClaimPaths

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// NewProvider creates a new OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	claims := config.Claims.withDefaults()
	for _, expr := range []string{claims.UserID, claims.Email, claims.DisplayName, claims.Groups} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid claim path %q: %w", expr, err)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		logoutURL:  config.LogoutURL,
		httpClient: httpClient,
		claims:     claims,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// Don't override redirect_uri here: it must match the configured
	// RedirectURL exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.claimsFromIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}

	identity, ok := p.extractIdentity(claims)
	if !ok {
		// ID token was missing required fields; merge in userinfo claims.
		if claims, err = p.mergeUserInfoClaims(ctx, token.AccessToken, claims); err != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", err)
		}
		identity, ok = p.extractIdentity(claims)
		if !ok {
			return domainauth.Identity{}, errors.New("identity claims incomplete after userinfo fetch")
		}
	}

	identity.ExpiresAt = time.Now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		identity.ExpiresAt = token.Expiry
	}
	return identity, nil
}

// claimsFromIDToken verifies the id_token, checks the nonce, and returns
// the raw claim document for JMESPath extraction.
func (p *Provider) claimsFromIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (map[string]any, error) {
	if !p.hasOpenIDScope() {
		return map[string]any{}, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" {
		if nonce, _ := claims["nonce"].(string); nonce != expectedNonce {
			return nil, errors.New("invalid nonce")
		}
	}
	return claims, nil
}

// mergeUserInfoClaims fetches the userinfo document and fills claim keys
// absent from the id_token.
func (p *Provider) mergeUserInfoClaims(ctx context.Context, accessToken string, claims map[string]any) (map[string]any, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var uiClaims map[string]any
	if claimsErr := ui.Claims(&uiClaims); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	merged := make(map[string]any, len(claims)+len(uiClaims))
	for k, v := range uiClaims {
		merged[k] = v
	}
	for k, v := range claims {
		merged[k] = v
	}
	return merged, nil
}

// extractIdentity applies the configured claim paths. ok is false when
// the required user id or email is missing.
func (p *Provider) extractIdentity(claims map[string]any) (domainauth.Identity, bool) {
	identity := domainauth.Identity{
		UserID:      searchString(p.claims.UserID, claims),
		Email:       searchString(p.claims.Email, claims),
		DisplayName: searchString(p.claims.DisplayName, claims),
		Groups:      searchStrings(p.claims.Groups, claims),
	}
	return identity, identity.UserID != "" && identity.Email != ""
}

func searchString(expr string, data map[string]any) string {
	v, err := jmespath.Search(expr, data)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func searchStrings(expr string, data map[string]any) []string {
	v, err := jmespath.Search(expr, data)
	if err != nil || v == nil {
		return nil
	}
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vals}
	default:
		return nil
	}
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least 'length' base64 URL-safe chars
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
