package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func newJWKSServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	set := JWKSet{Keys: []JWK{{
		Kty: "RSA",
		Kid: kid,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJWTMiddleware_RS256ViaJWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := newJWKSServer(t, "k1", &priv.PublicKey, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "nurse-7",
			Issuer:    "https://idp.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  "Nurse Seven",
		Roles: []string{RoleNurse},
	})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cfg := JWTConfig{Issuer: "https://idp.example", JWKSURL: srv.URL}
	err = runJWT(t, cfg, "Bearer "+signed, func(c echo.Context) error {
		if name := UserNameFromContext(c.Request().Context()); name != "Nurse Seven" {
			t.Errorf("expected Nurse Seven, got %s", name)
		}
		return ok(c)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWKSCache_CachesKeys(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var hits int32
	srv := newJWKSServer(t, "k1", &priv.PublicKey, &hits)
	cache := NewJWKSCache(srv.URL, time.Minute)

	for i := 0; i < 3; i++ {
		key, err := cache.Key(t.Context(), "k1")
		if err != nil {
			t.Fatalf("Key() error: %v", err)
		}
		if key.N.Cmp(priv.PublicKey.N) != 0 {
			t.Fatal("unexpected modulus")
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected 1 fetch, got %d", hits)
	}

	if _, err := cache.Key(t.Context(), "missing"); err == nil {
		t.Error("expected error for unknown kid")
	}
}
