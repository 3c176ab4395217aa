package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
)

// Service provides database lookups for operator contexts.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetOperatorContext retrieves the operator context for a given user ID.
// Returns gorm.ErrRecordNotFound (wrapped) when the operator is unknown,
// indicating an unauthorized request.
func (s *Service) GetOperatorContext(userID string) (*OperatorContext, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is empty")
	}

	var opCtx OperatorContext
	result := s.db.Where("user_id = ?", userID).First(&opCtx)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Debug("operator context not found", "user_id", userID)
			return nil, result.Error
		}
		slog.Error("failed to fetch operator context from database",
			"user_id", userID,
			"error", result.Error,
		)
		return nil, fmt.Errorf("failed to fetch operator context: %w", result.Error)
	}

	return &opCtx, nil
}

// UpsertOperatorContext creates or replaces the operator context record.
func (s *Service) UpsertOperatorContext(opCtx *OperatorContext) error {
	if opCtx == nil || opCtx.UserID == "" {
		return fmt.Errorf("operator context must carry a user ID")
	}
	if err := s.db.Save(opCtx).Error; err != nil {
		return fmt.Errorf("failed to save operator context: %w", err)
	}
	return nil
}

// TokenExtractor parses operator identity out of the Authorization header.
// The current scheme is an opaque bearer token equal to the user ID; a JWT
// verifier can replace this without touching the middleware.
type TokenExtractor struct{}

func NewTokenExtractor() *TokenExtractor {
	return &TokenExtractor{}
}

// ExtractUserIDFromHeader pulls the user ID from a "Bearer <token>" header.
func (te *TokenExtractor) ExtractUserIDFromHeader(authHeader string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", fmt.Errorf("authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	if token == "" {
		return "", fmt.Errorf("authorization token is empty")
	}
	return token, nil
}
