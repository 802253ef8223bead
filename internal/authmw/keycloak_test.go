package authmw

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyri56xcaesar/tasktracker/internal/models"
)

const testIssuer = "http://keycloak.local/realms/tasks"

func rsaVerifier(t *testing.T) (*KeycloakVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	set := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   enc.EncodeToString(key.N.Bytes()),
			"e":   enc.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)

	jwks, err := keyfunc.NewJSON(raw)
	require.NoError(t, err)
	return newKeycloakVerifier(jwks, testIssuer, "tasktracker"), key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims KCClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func kcClaims(email string) KCClaims {
	return KCClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{"tasktracker"},
			Subject:   "kc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Email: email,
	}
}

func TestKeycloakVerifier(t *testing.T) {
	v, key := rsaVerifier(t)

	claims, err := v.Verify(signRS256(t, key, kcClaims("dev@example.com")))
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", claims.Email)

	t.Run("wrong audience", func(t *testing.T) {
		c := kcClaims("dev@example.com")
		c.Audience = jwt.ClaimStrings{"account"}
		_, err := v.Verify(signRS256(t, key, c))
		assert.Error(t, err)
	})

	t.Run("no email", func(t *testing.T) {
		_, err := v.Verify(signRS256(t, key, kcClaims("")))
		assert.Error(t, err)
	})

	t.Run("hs256 rejected", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, kcClaims("dev@example.com")).SignedString([]byte("x"))
		require.NoError(t, err)
		_, err = v.Verify(tok)
		assert.Error(t, err)
	})
}

func TestGateFallsBackToKeycloak(t *testing.T) {
	f := newGate(t)
	v, key := rsaVerifier(t)
	f.gate.External = v

	p, claims, err := f.gate.Authenticate(context.Background(), signRS256(t, key, kcClaims("DEV@example.com")))
	require.NoError(t, err)
	assert.Nil(t, claims)
	assert.Equal(t, "d1", p.ID)
	assert.Equal(t, models.RoleTeamMember, p.Role)

	_, _, err = f.gate.Authenticate(context.Background(), signRS256(t, key, kcClaims("stranger@example.com")))
	assert.ErrorIs(t, err, ErrUnknownPrincipal)
}

// fakeKeycloak answers the handful of admin endpoints the directory uses.
type fakeKeycloak struct {
	mu      sync.Mutex
	created []map[string]any
	deleted []string
}

func (k *fakeKeycloak) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.mu.Lock()
	defer k.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/protocol/openid-connect/token"):
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"admin-token","expires_in":60,"token_type":"Bearer"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/users"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		k.created = append(k.created, body)
		w.Header().Set("Location", "http://"+r.Host+path+"/kc-1")
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/users"):
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"kc-1","email":"` + r.URL.Query().Get("email") + `"}]`))
	case r.Method == http.MethodDelete && strings.Contains(path, "/users/"):
		k.deleted = append(k.deleted, path[strings.LastIndex(path, "/")+1:])
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestKeycloakDirectory(t *testing.T) {
	fake := &fakeKeycloak{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := NewKeycloakDirectory(srv.URL, "tasks", "tasktracker", "s3cret")
	ctx := context.Background()

	u := &models.User{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com", Role: models.RoleProjectManager}
	require.NoError(t, dir.Provision(ctx, u, "hunter22"))
	require.Len(t, fake.created, 1)
	assert.Equal(t, "ada@example.com", fake.created[0]["email"])
	assert.Equal(t, "Ada", fake.created[0]["firstName"])
	assert.Equal(t, "Lovelace", fake.created[0]["lastName"])

	require.NoError(t, dir.Deprovision(ctx, "ada@example.com"))
	assert.Equal(t, []string{"kc-1"}, fake.deleted)
}
