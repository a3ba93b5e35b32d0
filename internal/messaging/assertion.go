package messaging

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	assertionType     = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime = 25 * time.Minute
	tokenExpirySlack  = time.Minute
)

// AssertionTokenSource issues short-lived channel access tokens by
// exchanging a JWT client assertion signed with the channel's assertion
// signing key. Issued tokens are cached until shortly before expiry.
type AssertionTokenSource struct {
	endpoint   string
	channelID  string
	keyID      string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAssertionTokenSource creates a token source for the given channel.
// keyPEM is the RSA assertion signing key in PEM form; keyID is its kid.
func NewAssertionTokenSource(endpoint, channelID, keyID string, keyPEM []byte, httpClient *http.Client) (*AssertionTokenSource, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	if strings.TrimSpace(keyID) == "" {
		return nil, fmt.Errorf("assertion key id is required")
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse assertion key: %w", err)
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &AssertionTokenSource{
		endpoint:   strings.TrimRight(endpoint, "/"),
		channelID:  channelID,
		keyID:      keyID,
		privateKey: privateKey,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Token implements TokenSource.
func (s *AssertionTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires.Add(-tokenExpirySlack)) {
		return s.token, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_assertion_type", assertionType)
	form.Set("client_assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/oauth2/v2.1/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request channel token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var issued struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if issued.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	s.token = issued.AccessToken
	s.expires = s.now().Add(time.Duration(issued.ExpiresIn) * time.Second)
	return s.token, nil
}

func (s *AssertionTokenSource) signAssertion() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":       s.channelID,
		"sub":       s.channelID,
		"aud":       s.endpoint + "/",
		"iat":       now.Unix(),
		"exp":       now.Add(assertionLifetime).Unix(),
		"token_exp": int64((24 * time.Hour).Seconds()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
