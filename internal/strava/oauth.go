package strava

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/lildude/strautonotion/internal/config"
	"golang.org/x/oauth2"
)

// DefaultRedirectURL is accepted by Strava for any application.
const DefaultRedirectURL = "http://localhost"

// Authorizer walks through the one-off OAuth flow that yields the refresh
// token used for syncing.
type Authorizer struct {
	conf *oauth2.Config
}

// NewAuthorizer only needs the application credentials.
func NewAuthorizer(cfg config.StravaConfig, redirectURL string) (*Authorizer, error) {
	if err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.ClientID, validation.Required),
		validation.Field(&cfg.ClientSecret, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("strava application: %w", err)
	}
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	conf := OAuthConfig(cfg)
	conf.RedirectURL = redirectURL
	return &Authorizer{conf: conf}, nil
}

// AuthCodeURL is the page the athlete visits to grant access.
func (a *Authorizer) AuthCodeURL(state string) string {
	return a.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// Exchange swaps the code from the redirect for a token and returns the
// refresh token and the athlete's username.
func (a *Authorizer) Exchange(ctx context.Context, code string) (refreshToken, username string, err error) {
	if code == "" {
		return "", "", errors.New("code not found")
	}
	token, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("token exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return "", "", errors.New("token exchange returned no refresh token")
	}
	if athlete, ok := token.Extra("athlete").(map[string]any); ok {
		username, _ = athlete["username"].(string)
	}
	return token.RefreshToken, username, nil
}
