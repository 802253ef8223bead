// Package authmw authenticates requests. It reads a bearer header or the
// token cookie, verifies it, and resolves the caller from the user store.
package authmw

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/errs"
	"kyri56xcaesar/tasktracker/internal/metrics"
	"kyri56xcaesar/tasktracker/internal/models"
	"kyri56xcaesar/tasktracker/internal/store"
)

const (
	CookieName = "token"

	principalKey = "auth.principal"
	tokenKey     = "auth.token"
	claimsKey    = "auth.claims"
)

// UserLookup is the slice of the user store the gate needs.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Gate struct {
	Issuer      *Issuer
	Users       UserLookup
	Revocations Revocations
	// External is consulted for tokens the local issuer rejects.
	External *KeycloakVerifier
	Metrics  *metrics.Metrics
	Log      *logrus.Logger
}

// Authenticate resolves a raw token into a principal. Role and profile
// always come from the stored user, not from the token.
func (g *Gate) Authenticate(ctx context.Context, token string) (models.Principal, *Claims, error) {
	if token == "" {
		return models.Principal{}, nil, ErrNoToken
	}

	claims, err := g.Issuer.Verify(token)
	if err != nil {
		if g.External == nil {
			return models.Principal{}, nil, err
		}
		kc, kcErr := g.External.Verify(token)
		if kcErr != nil {
			return models.Principal{}, nil, err
		}
		u, err := g.Users.GetUserByEmail(ctx, strings.ToLower(kc.Email))
		if err != nil {
			return models.Principal{}, nil, g.lookupErr(err)
		}
		return models.PrincipalOf(u), nil, nil
	}

	if g.Revocations != nil {
		revoked, err := g.Revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return models.Principal{}, nil, errs.Internal("Server Error", err)
		}
		if revoked {
			return models.Principal{}, nil, ErrInvalidToken
		}
	}

	u, err := g.Users.GetUser(ctx, claims.UserID)
	if err != nil {
		return models.Principal{}, nil, g.lookupErr(err)
	}
	return models.PrincipalOf(u), claims, nil
}

func (g *Gate) lookupErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownPrincipal
	}
	return errs.Internal("Server Error", err)
}

func (g *Gate) resolve(c *gin.Context) error {
	token := extractAccessToken(c)
	p, claims, err := g.Authenticate(c.Request.Context(), token)
	if err != nil {
		g.Metrics.AuthFailure(reason(err))
		if g.Log != nil && errs.KindOf(err) == errs.KindInternal {
			g.Log.WithError(err).Error("failed to resolve principal")
		}
		return err
	}

	c.Set(principalKey, p)
	c.Set(tokenKey, token)
	if claims != nil {
		c.Set(claimsKey, claims)
	}
	return nil
}

// RequireAuth rejects unauthenticated API calls with the JSON envelope.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.resolve(c); err != nil {
			c.AbortWithStatusJSON(errs.Status(err), gin.H{
				"success": false,
				"message": errs.Message(err),
			})
			return
		}
		c.Next()
	}
}

// RequirePage sends unauthenticated browsers to the login page.
func (g *Gate) RequirePage(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.resolve(c); err != nil {
			if errs.KindOf(err) == errs.KindInternal {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			ClearCookie(c, false, "")
			c.Redirect(http.StatusSeeOther, loginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Optional attaches the principal when a valid token is present and never
// rejects.
func (g *Gate) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if extractAccessToken(c) != "" {
			_ = g.resolve(c)
		}
		c.Next()
	}
}

// RequireRoles must run after RequireAuth or RequirePage.
func RequireRoles(anyOf ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": ErrNoToken.Message})
			return
		}
		if !slices.Contains(anyOf, p.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "User role " + string(p.Role) + " is not authorized to access this route",
			})
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok && p.Authenticated()
}

// ClaimsFrom is only set for locally issued tokens.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// SetCookie stores the token in an HttpOnly cookie.
func SetCookie(c *gin.Context, token string, maxAge int, secure bool, domain string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", domain, secure, true)
}

func ClearCookie(c *gin.Context, secure bool, domain string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", domain, secure, true)
}

func extractAccessToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}

	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}

	return ""
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnknownPrincipal):
		return "unknown_principal"
	}
	return "error"
}
