package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/speechbox/server/internal/model"
)

// DefaultBoxTokenExpiry is the lifetime of a device token minted for a box.
const DefaultBoxTokenExpiry = 365 * 24 * time.Hour

// BoxClaims identifies the box a device token was issued to
type BoxClaims struct {
	BoxID model.BoxID `json:"box_id"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token operations
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// SignBoxToken creates a device token for boxID valid for ttl
func (s *JWTService) SignBoxToken(boxID model.BoxID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &BoxClaims{
		BoxID: boxID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   boxID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken verifies and parses a device token
func (s *JWTService) VerifyToken(tokenString string) (*BoxClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &BoxClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*BoxClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.BoxID <= 0 {
		return nil, fmt.Errorf("token has no box id")
	}

	return claims, nil
}
