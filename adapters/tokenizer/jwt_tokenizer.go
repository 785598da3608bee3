package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const AudienceLink = "gatekeeper:link"

// LinkClaims are the claims of a verify-link token. The subject is the chat user id.
type LinkClaims struct {
	jwt.RegisteredClaims
}

// JWTTokenizer implements the LinkTokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	ttl     time.Duration
	nowF    func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer issuing tokens valid for ttl
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, ttl time.Duration) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, ttl: ttl, nowF: time.Now}
}

var _ ports.LinkTokenizer = (*JWTTokenizer)(nil)

// LoadSigningKey parses a PEM encoded EC private key. An empty PEM yields a fresh
// P-256 key, which invalidates outstanding links on every restart.
func LoadSigningKey(pemKey string) (*ecdsa.PrivateKey, error) {
	if pemKey == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse link signing key: %w", err)
	}
	return key, nil
}

// UserToToken creates a link token for userID
func (j *JWTTokenizer) UserToToken(userID int64) (string, error) {
	now := j.nowF()
	claims := LinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceLink},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// TokenToUser validates a link token and returns its user id
func (j *JWTTokenizer) TokenToUser(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceLink), jwt.WithTimeFunc(j.nowF))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, core.ErrTokenExpired
		}
		return 0, fmt.Errorf("failed to parse token: %w: %w", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*LinkClaims)
	if !ok || !token.Valid {
		return 0, core.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", core.ErrInvalidToken)
	}

	return userID, nil
}
