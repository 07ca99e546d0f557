// Package keycloak wraps the identity provider: service-account logins
// for the uploader clients, realm-role provisioning after a successful
// publish, and token introspection for the gate.
package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Nerzal/gocloak/v13"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/openwsi/slideconv/internal/gate"
	"go.uber.org/zap"
)

// ProvisioningError marks a failed role grant. The converted data is
// already published when this happens, so the job is reported as failed
// but nothing is rolled back.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("AccessProvisioningFailed: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

type Config struct {
	URL           string
	Realm         string
	ClientID      string
	ClientSecret  string
	AdminUser     string
	AdminPass     string
	StudyPrefix   string
	PatientPrefix string
}

type Client struct {
	gc  *gocloak.GoCloak
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{gc: gocloak.NewClient(cfg.URL), cfg: cfg}
}

// ProvisionAccess grants the submitting user the study and patient realm
// roles, creating the roles first when they do not exist yet. Re-running
// the grant for an existing role is a no-op, which keeps resubmissions
// safe.
func (c *Client) ProvisionAccess(ctx context.Context, businessID uuid.UUID, patientID, userID string) error {
	token, err := c.gc.LoginAdmin(ctx, c.cfg.AdminUser, c.cfg.AdminPass, c.cfg.Realm)
	if err != nil {
		return &ProvisioningError{Err: fmt.Errorf("admin login: %w", err)}
	}

	names := []string{
		c.cfg.StudyPrefix + businessID.String(),
		c.cfg.PatientPrefix + patientID,
	}

	roles := make([]gocloak.Role, 0, len(names))
	for _, name := range names {
		role, err := c.ensureRealmRole(ctx, token.AccessToken, name)
		if err != nil {
			return err
		}
		roles = append(roles, *role)
	}

	if err := c.gc.AddRealmRoleToUser(ctx, token.AccessToken, c.cfg.Realm, userID, roles); err != nil {
		return &ProvisioningError{Err: fmt.Errorf("assigning roles to user %s: %w", userID, err)}
	}

	zap.S().Named("keycloak").Infow("granted study access", "user_id", userID, "roles", names)
	return nil
}

func (c *Client) ensureRealmRole(ctx context.Context, token, name string) (*gocloak.Role, error) {
	_, err := c.gc.CreateRealmRole(ctx, token, c.cfg.Realm, gocloak.Role{Name: gocloak.StringP(name)})
	if err != nil {
		var apiErr *gocloak.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != http.StatusConflict {
			return nil, &ProvisioningError{Err: fmt.Errorf("creating role %s: %w", name, err)}
		}
		// A conflict means a previous submission already created the role.
	}

	role, err := c.gc.GetRealmRole(ctx, token, c.cfg.Realm, name)
	if err != nil {
		return nil, &ProvisioningError{Err: fmt.Errorf("looking up role %s: %w", name, err)}
	}
	return role, nil
}

// UploaderTokens returns a token source doing a password grant for the
// given service account on every call.
func (c *Client) UploaderTokens(username, password string) *TokenSource {
	return &TokenSource{client: c, username: username, password: password}
}

type TokenSource struct {
	client   *Client
	username string
	password string
}

func (t *TokenSource) Token(ctx context.Context) (string, error) {
	cfg := t.client.cfg
	token, err := t.client.gc.Login(ctx, cfg.ClientID, cfg.ClientSecret, cfg.Realm, t.username, t.password)
	if err != nil {
		return "", fmt.Errorf("logging in %s: %w", t.username, err)
	}
	return token.AccessToken, nil
}

// Resolve introspects a bearer token and extracts its realm roles. The
// roles are read from the token payload without re-verifying the
// signature; the introspection call already vouched for the token.
func (c *Client) Resolve(ctx context.Context, rawToken string) (*gate.Credential, error) {
	result, err := c.gc.RetrospectToken(ctx, rawToken, c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.Realm)
	if err != nil {
		return nil, fmt.Errorf("introspecting token: %w", err)
	}

	cred := &gate.Credential{Active: result.Active != nil && *result.Active}
	if cred.Active {
		cred.Roles = RealmRoles(rawToken)
	}
	return cred, nil
}

// RealmRoles extracts realm_access.roles from a token payload without
// verifying the signature.
func RealmRoles(rawToken string) []string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil
	}
	access, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := access["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, role := range raw {
		if s, ok := role.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
