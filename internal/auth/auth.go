package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	RoleWorker Role = "worker"
)

const (
	PermissionChargeBookings = "charge_bookings"
	PermissionRunPayouts     = "run_payouts"
	PermissionRefundPayments = "refund_payments"
	PermissionViewHistory    = "view_history"
	PermissionViewStats      = "view_stats"
	PermissionManageConnect  = "manage_connect"
)

// Principal is the authenticated caller. ClientID and WorkerID are set for self-service
// tokens and scope which records the caller may read.
type Principal struct {
	Subject     string   `json:"subject"`
	Role        Role     `json:"role"`
	ClientID    int64    `json:"client_id,omitempty"`
	WorkerID    int64    `json:"worker_id,omitempty"`
	Permissions []string `json:"permissions"`
}

// TokenGenerator signs and validates bearer tokens.
type TokenGenerator interface {
	GenerateAccessToken(p Principal) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type ServiceAPI interface {
	Authenticate(tokenString string) (*Principal, error)
	IssueToken(p Principal) (string, error)
}

// Claims represents JWT token claims
type Claims struct {
	Role        string   `json:"role"`
	ClientID    int64    `json:"client_id,omitempty"`
	WorkerID    int64    `json:"worker_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	Secret         []byte
	Issuer         string
	AccessTokenTTL time.Duration
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownRole  = errors.New("unknown role")
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ContextPrincipalKey).(*Principal)
	return p, ok && p != nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleClient, RoleWorker:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}
