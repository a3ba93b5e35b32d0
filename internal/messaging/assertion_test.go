package messaging

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return key, pem.EncodeToMemory(block)
}

func TestNewAssertionTokenSourceValidation(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	if _, err := NewAssertionTokenSource("", "", "kid-1", keyPEM, nil); err == nil {
		t.Fatal("expected error for empty channel id")
	}
	if _, err := NewAssertionTokenSource("", "1654", "", keyPEM, nil); err == nil {
		t.Fatal("expected error for empty key id")
	}
	if _, err := NewAssertionTokenSource("", "1654", "kid-1", []byte("not a key"), nil); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestTokenExchangesSignedAssertion(t *testing.T) {
	key, keyPEM := testKeyPEM(t)

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/oauth2/v2.1/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("unexpected grant_type %q", got)
		}
		if got := r.PostForm.Get("client_assertion_type"); got != assertionType {
			t.Errorf("unexpected assertion type %q", got)
		}

		assertion := r.PostForm.Get("client_assertion")
		parsed, err := jwt.Parse(assertion, func(token *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			t.Errorf("parse assertion: %v", err)
		} else {
			claims := parsed.Claims.(jwt.MapClaims)
			if claims["iss"] != "1654" || claims["sub"] != "1654" {
				t.Errorf("unexpected assertion claims %v", claims)
			}
			if parsed.Header["kid"] != "kid-1" {
				t.Errorf("unexpected kid %v", parsed.Header["kid"])
			}
		}

		fmt.Fprint(w, `{"access_token":"issued-token","expires_in":86400}`)
	}))
	defer server.Close()

	source, err := NewAssertionTokenSource(server.URL, "1654", "kid-1", keyPEM, server.Client())
	if err != nil {
		t.Fatalf("new assertion source: %v", err)
	}

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "issued-token" {
		t.Fatalf("unexpected token %q", token)
	}

	// A second call inside the expiry window reuses the cached token.
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("cached token: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected 1 token request, got %d", requests)
	}
}

func TestTokenRefreshesAfterExpiry(t *testing.T) {
	_, keyPEM := testKeyPEM(t)

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"access_token":"issued-token","expires_in":60}`)
	}))
	defer server.Close()

	source, err := NewAssertionTokenSource(server.URL, "1654", "kid-1", keyPEM, server.Client())
	if err != nil {
		t.Fatalf("new assertion source: %v", err)
	}
	current := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
	source.now = func() time.Time { return current }

	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("refreshed token: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected 2 token requests, got %d", requests)
	}
}

func TestTokenRejectedStatus(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	source, err := NewAssertionTokenSource(server.URL, "1654", "kid-1", keyPEM, server.Client())
	if err != nil {
		t.Fatalf("new assertion source: %v", err)
	}
	if _, err := source.Token(context.Background()); err == nil {
		t.Fatal("expected error for rejected exchange")
	}
}
