package mocks

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/service/auth"
)

// MockJWTService implements auth.JWTService with unsigned tokens of the
// form "<type>:<user id>". Function fields override the defaults.
type MockJWTService struct {
	GenerateTokenFn        func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateTokenFn        func(ctx context.Context, tokenString string) (*auth.Claims, error)
	ValidateRefreshTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)
}

// GenerateToken implements the auth.JWTService interface
func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, userID)
	}
	return auth.TokenTypeAccess + ":" + userID.String(), nil
}

// ValidateToken implements the auth.JWTService interface
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	return parseMockToken(tokenString, auth.TokenTypeAccess, auth.ErrInvalidToken)
}

// GenerateRefreshToken implements the auth.JWTService interface
func (m *MockJWTService) GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return auth.TokenTypeRefresh + ":" + userID.String(), nil
}

// ValidateRefreshToken implements the auth.JWTService interface
func (m *MockJWTService) ValidateRefreshToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateRefreshTokenFn != nil {
		return m.ValidateRefreshTokenFn(ctx, tokenString)
	}
	return parseMockToken(tokenString, auth.TokenTypeRefresh, auth.ErrInvalidRefreshToken)
}

func parseMockToken(token, wantType string, invalid error) (*auth.Claims, error) {
	tokenType, rawID, ok := strings.Cut(token, ":")
	if !ok {
		return nil, invalid
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, invalid
	}
	if tokenType != wantType {
		return nil, auth.ErrWrongTokenType
	}
	return &auth.Claims{UserID: id, TokenType: tokenType, Subject: rawID}, nil
}

var _ auth.JWTService = (*MockJWTService)(nil)
