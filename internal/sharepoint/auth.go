package sharepoint

import (
	"context"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenProvider exchanges a credential for a bearer token.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ClientCredentials implements the certificate client-credential flow: it
// signs a JWT assertion with the configured certificate's private key and
// exchanges it for a bearer token at the identity provider's token endpoint.
type ClientCredentials struct {
	clientID   string
	scope      string
	tokenURL   string
	thumbprint string
	key        *rsa.PrivateKey
	httpClient *http.Client
}

// NewClientCredentials loads the PEM certificate and private key and prepares
// the provider. The x5t thumbprint (base64url SHA-1 of the DER certificate)
// identifies the certificate to the identity provider.
func NewClientCredentials(clientID, authority, scope, certPath, keyPath string) (*ClientCredentials, error) {
	cert, err := loadCertificate(certPath)
	if err != nil {
		return nil, err
	}
	key, err := loadPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}

	sum := sha1.Sum(cert.Raw)
	return &ClientCredentials{
		clientID:   clientID,
		scope:      scope,
		tokenURL:   strings.TrimRight(authority, "/") + "/oauth2/v2.0/token",
		thumbprint: base64.RawURLEncoding.EncodeToString(sum[:]),
		key:        key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// AccessToken exchanges a signed client assertion for a bearer token.
// It returns *AuthError if the identity provider rejects the credential.
func (p *ClientCredentials) AccessToken(ctx context.Context) (string, error) {
	assertion, err := p.signAssertion()
	if err != nil {
		return "", &AuthError{Err: err}
	}

	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_id":             {p.clientID},
		"scope":                 {p.scope},
		"client_assertion_type": {"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"},
		"client_assertion":      {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("token request: %w", err)}
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token endpoint returned %d: %s - %s",
			resp.StatusCode, body.Error, body.ErrorDescription)}
	}
	return body.AccessToken, nil
}

func (p *ClientCredentials) signAssertion() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud": p.tokenURL,
		"iss": p.clientID,
		"sub": p.clientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	token.Header["x5t"] = p.thumbprint

	signed, err := token.SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return signed, nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("certificate %s: no PEM block found", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate %s: %w", path, err)
	}
	return cert, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("private key %s: no PEM block found", path)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key %s: not an RSA key", path)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return key, nil
}
