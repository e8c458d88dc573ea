// internal/common/auth/keycloak.go
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"access-workflow/internal/common/errors"
	commonhttp "access-workflow/internal/common/http"
)

// KeycloakClient validates access tokens against Keycloak's introspection endpoint.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(timeout),
	}
}

// ValidateToken checks if an access token is valid and active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	var tokenInfo TokenInfo
	if err := k.httpClient.PostFormJSON(ctx, introspectURL, data, &tokenInfo); err != nil {
		var statusErr *commonhttp.StatusError
		if stderrors.As(err, &statusErr) && !k.isTransientHTTPError(statusErr.StatusCode) {
			return nil, errors.NewAuthenticationError(fmt.Sprintf("introspection rejected: %d", statusErr.StatusCode))
		}
		return nil, errors.NewExternalServiceError("keycloak", err)
	}

	if !tokenInfo.Active {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}

	return &tokenInfo, nil
}

// Authenticate maps an active token's subject to the caller identity.
func (k *KeycloakClient) Authenticate(ctx context.Context, token string) (*Identity, error) {
	info, err := k.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, errors.NewAuthenticationError("token carries no subject")
	}
	return &Identity{UserID: info.Sub, Email: info.Email}, nil
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func (k *KeycloakClient) isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// TokenInfo holds the information returned by the token introspection endpoint.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"` // seconds since epoch
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"` // user ID
	Iss       string `json:"iss,omitempty"`
}
