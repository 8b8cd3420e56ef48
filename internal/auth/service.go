package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service is the main auth service with dependencies
type Service struct {
	tokenGenerator TokenGenerator
	permissions    PermissionChecker
}

func NewService(tokenGen TokenGenerator, permissions PermissionChecker) *Service {
	if permissions == nil {
		permissions = NewPermissionChecker()
	}
	return &Service{
		tokenGenerator: tokenGen,
		permissions:    permissions,
	}
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(secret, issuer string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		Issuer:         issuer,
		AccessTokenTTL: ttl,
	}
}

// Authenticate validates a bearer token and resolves the caller's permissions. Tokens
// carrying no explicit permissions get their role's defaults.
func (s *Service) Authenticate(tokenString string) (*Principal, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	perms := claims.Permissions
	if len(perms) == 0 {
		perms = s.permissions.DefaultPermissions(role)
	}
	return &Principal{
		Subject:     claims.Subject,
		Role:        role,
		ClientID:    claims.ClientID,
		WorkerID:    claims.WorkerID,
		Permissions: perms,
	}, nil
}

// IssueToken signs a token for p. Used by operators to mint service tokens.
func (s *Service) IssueToken(p Principal) (string, error) {
	if _, err := ParseRole(string(p.Role)); err != nil {
		return "", err
	}
	if p.Subject == "" {
		return "", errors.New("subject is required")
	}
	return s.tokenGenerator.GenerateAccessToken(p)
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(p Principal) (string, error) {
	now := time.Now()

	claims := &Claims{
		Role:        string(p.Role),
		ClientID:    p.ClientID,
		WorkerID:    p.WorkerID,
		Permissions: p.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.Issuer,
			Subject:   p.Subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
