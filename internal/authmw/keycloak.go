package authmw

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/Nerzal/gocloak/v13"
	"github.com/golang-jwt/jwt/v5"

	"kyri56xcaesar/tasktracker/internal/models"
)

// KeycloakVerifier accepts RS256 access tokens from a Keycloak realm. The
// caller is then resolved to a local user by e-mail.
type KeycloakVerifier struct {
	Issuer   string // e.g. http://localhost:8080/realms/myrealm
	Audience string

	JWKS   *keyfunc.JWKS
	Leeway time.Duration
}

// NewKeycloakVerifier fetches the realm JWKS once and keeps it refreshed in
// the background.
func NewKeycloakVerifier(baseURL, realm, audience string) (*KeycloakVerifier, error) {
	base := strings.TrimRight(baseURL, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	issuer := fmt.Sprintf("%s/realms/%s", base, realm)

	jwks, err := keyfunc.Get(issuer+"/protocol/openid-connect/certs", keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute * 5,
		RefreshTimeout:   time.Second * 10,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch keycloak jwks: %w", err)
	}

	return newKeycloakVerifier(jwks, issuer, audience), nil
}

func newKeycloakVerifier(jwks *keyfunc.JWKS, issuer, audience string) *KeycloakVerifier {
	return &KeycloakVerifier{
		Issuer:   issuer,
		Audience: audience,
		JWKS:     jwks,
		Leeway:   30 * time.Second,
	}
}

type KCClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
}

func (a *KeycloakVerifier) Verify(tokenStr string) (*KCClaims, error) {
	claims := &KCClaims{}
	opts := []jwt.ParserOption{
		jwt.WithIssuer(a.Issuer),
		jwt.WithLeeway(a.Leeway),
		jwt.WithValidMethods([]string{"RS256"}),
	}
	if a.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.Audience))
	}

	if _, err := jwt.ParseWithClaims(tokenStr, claims, a.JWKS.Keyfunc, opts...); err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("keycloak token carries no email")
	}
	return claims, nil
}

func (a *KeycloakVerifier) Close() {
	a.JWKS.EndBackground()
}

// Directory mirrors local accounts into an external identity provider.
type Directory interface {
	Provision(ctx context.Context, u *models.User, password string) error
	Deprovision(ctx context.Context, email string) error
}

type NopDirectory struct{}

func (NopDirectory) Provision(context.Context, *models.User, string) error { return nil }

func (NopDirectory) Deprovision(context.Context, string) error { return nil }

// KeycloakDirectory provisions users through the Keycloak admin API with a
// service account client.
type KeycloakDirectory struct {
	Client       *gocloak.GoCloak
	Realm        string
	clientID     string
	clientSecret string
}

func NewKeycloakDirectory(baseURL, realm, clientID, clientSecret string) *KeycloakDirectory {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &KeycloakDirectory{
		Client:       gocloak.NewClient(baseURL),
		Realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SelfTest logs in with the service account and reads the realm.
func (s *KeycloakDirectory) SelfTest(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tok, err := s.loginAdmin(ctx)
	if err != nil {
		return fmt.Errorf("keycloak auth failed: %w", err)
	}
	if _, err := s.Client.GetRealm(ctx, tok.AccessToken, s.Realm); err != nil {
		return fmt.Errorf("keycloak permission check failed: %w", err)
	}
	return nil
}

func (s *KeycloakDirectory) loginAdmin(ctx context.Context) (*gocloak.JWT, error) {
	return s.Client.LoginClient(ctx, s.clientID, s.clientSecret, s.Realm)
}

func (s *KeycloakDirectory) Provision(ctx context.Context, u *models.User, password string) error {
	tok, err := s.loginAdmin(ctx)
	if err != nil {
		return err
	}

	first, last, _ := strings.Cut(u.Name, " ")
	user := gocloak.User{
		Username:      gocloak.StringP(u.Email),
		Email:         gocloak.StringP(u.Email),
		EmailVerified: gocloak.BoolP(false),
		Enabled:       gocloak.BoolP(true),
		FirstName:     gocloak.StringP(first),
		LastName:      gocloak.StringP(last),
		Attributes: &map[string][]string{
			"tasktracker_id":   {u.ID},
			"tasktracker_role": {string(u.Role)},
		},
		Credentials: &[]gocloak.CredentialRepresentation{
			{
				Type:      gocloak.StringP("password"),
				Value:     gocloak.StringP(password),
				Temporary: gocloak.BoolP(false),
			},
		},
	}

	_, err = s.Client.CreateUser(ctx, tok.AccessToken, s.Realm, user)
	return err
}

func (s *KeycloakDirectory) Deprovision(ctx context.Context, email string) error {
	tok, err := s.loginAdmin(ctx)
	if err != nil {
		return err
	}

	users, err := s.Client.GetUsers(ctx, tok.AccessToken, s.Realm, gocloak.GetUsersParams{
		Email: gocloak.StringP(email),
		Exact: gocloak.BoolP(true),
		Max:   gocloak.IntP(2),
	})
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID == nil {
			continue
		}
		if err := s.Client.DeleteUser(ctx, tok.AccessToken, s.Realm, *u.ID); err != nil {
			return err
		}
	}
	return nil
}
