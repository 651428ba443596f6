package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// ServiceAccount authenticates with a service account key.
func ServiceAccount(credentialsJSON []byte) goption.ClientOption {
	return goption.WithCredentialsJSON(credentialsJSON)
}

// OAuthConfig parses an OAuth client file ("installed" or "web") for the
// Sheets scope.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// ParseToken decodes a token saved by the OAuth consent flow.
func ParseToken(tokenJSON []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token: no access or refresh token")
	}
	return &tok, nil
}

// UserToken authenticates as the user who granted tokenJSON. The token is
// refreshed through the client configuration when it expires.
func UserToken(ctx context.Context, clientJSON, tokenJSON []byte) (goption.ClientOption, error) {
	cfg, err := OAuthConfig(clientJSON)
	if err != nil {
		return nil, err
	}
	tok, err := ParseToken(tokenJSON)
	if err != nil {
		return nil, err
	}
	return goption.WithTokenSource(cfg.TokenSource(ctx, tok)), nil
}
