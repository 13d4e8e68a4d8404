package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims carries the actor inside an access token.
type Claims struct {
	Role   string `json:"role"`
	ShopID string `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates HS256 access tokens.
type JWTManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTManager(secretKey string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTManager{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}
}

func (j *JWTManager) GenerateToken(actor Actor) (string, error) {
	now := j.now()
	claims := Claims{
		Role:   actor.Role,
		ShopID: actor.ShopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			Issuer:    "fleetbook",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
}

func (j *JWTManager) ValidateToken(tokenString string) (Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return j.secretKey, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Actor{}, ErrExpiredToken
		}
		return Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Actor{}, ErrInvalidToken
	}
	return Actor{ID: claims.Subject, Role: claims.Role, ShopID: claims.ShopID}, nil
}
