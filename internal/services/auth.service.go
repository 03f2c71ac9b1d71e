package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"guardians/internal/logging"
)

var authLog = logging.L("auth")

const (
	tokenIssuer        = "guardians-server"
	defaultTokenExpiry = 90 * 24 * time.Hour
	minSecretLen       = 32
	secretFileName     = ".guardians-secret-key"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService issues and verifies HS256 tokens for the websocket and action
// endpoints.
type AuthService struct {
	secretKey   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// CustomClaims are the claims carried by guardians tokens
type CustomClaims struct {
	ServerName string `json:"server_name"`
	jwt.RegisteredClaims
}

// DefaultSecretFile is where a generated secret is persisted between runs
func DefaultSecretFile() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, secretFileName)
	}
	return filepath.Join(os.TempDir(), secretFileName)
}

// NewAuthService uses secretKey when set. Otherwise it loads the secret from
// keyFile, generating and persisting one on first use.
func NewAuthService(secretKey, keyFile string, tokenExpiry time.Duration) (*AuthService, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		var err error
		if secretKey, err = loadOrCreateSecret(keyFile); err != nil {
			return nil, err
		}
	}
	if len(secretKey) < minSecretLen {
		return nil, fmt.Errorf("secret key is %d bytes, need at least %d for HMAC-SHA256", len(secretKey), minSecretLen)
	}
	if tokenExpiry <= 0 {
		tokenExpiry = defaultTokenExpiry
	}
	return &AuthService{secretKey: []byte(secretKey), tokenExpiry: tokenExpiry, now: time.Now}, nil
}

func loadOrCreateSecret(keyFile string) (string, error) {
	if keyFile == "" {
		keyFile = DefaultSecretFile()
	}
	if data, err := os.ReadFile(keyFile); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			authLog.Info("loaded persisted secret key", "path", keyFile)
			return secret, nil
		}
	}

	random := make([]byte, minSecretLen)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	secret := hex.EncodeToString(random)
	if err := os.WriteFile(keyFile, []byte(secret), 0o600); err != nil {
		authLog.Warn("could not persist secret key, tokens will not survive a restart", "path", keyFile, logging.KeyError, err)
	} else {
		authLog.Info("generated and persisted secret key", "path", keyFile)
	}
	return secret, nil
}

// GenerateToken issues a token for serverName
func (a *AuthService) GenerateToken(serverName string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.tokenExpiry)
	claims := CustomClaims{
		ServerName: serverName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies signature, expiry and issuer
func (a *AuthService) ValidateToken(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
