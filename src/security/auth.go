package security

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RequestSigner authenticates an outgoing exchange API request.
type RequestSigner interface {
	Sign(req *http.Request, body []byte) error
}

// ExchangeSigner signs Coinbase Exchange requests with the legacy
// key/secret/passphrase triplet.
type ExchangeSigner struct {
	key        string
	secret     []byte
	passphrase string
	now        func() time.Time
}

func NewExchangeSigner(key, base64Secret, passphrase string) (*ExchangeSigner, error) {
	if key == "" || base64Secret == "" || passphrase == "" {
		return nil, errors.New("coinbase exchange credentials are incomplete")
	}
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("invalid coinbase exchange secret: %w", err)
	}
	return &ExchangeSigner{key: key, secret: secret, passphrase: passphrase, now: time.Now}, nil
}

// Sign sets the CB-ACCESS-* headers. The signature covers timestamp, method,
// request path with query, and body.
func (s *ExchangeSigner) Sign(req *http.Request, body []byte) error {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp + req.Method + req.URL.RequestURI() + string(body)))

	req.Header.Set("CB-ACCESS-KEY", s.key)
	req.Header.Set("CB-ACCESS-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("CB-ACCESS-PASSPHRASE", s.passphrase)
	return nil
}

const cdpTokenLifetime = 2 * time.Minute

// CDPSigner issues the short lived ES256 JWT expected by the Coinbase App
// API for CDP keys. A token is bound to one method and path.
type CDPSigner struct {
	keyName string
	key     *ecdsa.PrivateKey
	now     func() time.Time
}

func NewCDPSigner(keyName, pemKey string) (*CDPSigner, error) {
	if keyName == "" || pemKey == "" {
		return nil, errors.New("coinbase API key name and private key are required")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("invalid coinbase API private key: %w", err)
	}
	return &CDPSigner{keyName: keyName, key: key, now: time.Now}, nil
}

func (s *CDPSigner) Token(method, host, path string) (string, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return "", err
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub": s.keyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(cdpTokenLifetime).Unix(),
		"uri": fmt.Sprintf("%s %s%s", method, host, path),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyName
	token.Header["nonce"] = nonce
	return token.SignedString(s.key)
}

func (s *CDPSigner) Sign(req *http.Request, _ []byte) error {
	token, err := s.Token(req.Method, req.URL.Host, req.URL.Path)
	if err != nil {
		return fmt.Errorf("failed to sign coinbase request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
