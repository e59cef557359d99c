package notification

import (
	"context"
	"fmt"

	"agrego/internal/shared/logger"
)

// Service contains the business logic for notification operations
type Service struct {
	repo      Repository
	messenger Messenger
}

// NewService creates a new notification service. A nil messenger
// disables delivery; registration still works so tokens are ready once
// push is configured.
func NewService(repo Repository, messenger Messenger) *Service {
	return &Service{repo: repo, messenger: messenger}
}

// RegisterDevice registers a device token for the authenticated user.
// If the token already belongs to another user, it is reassigned.
func (s *Service) RegisterDevice(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpsertDeviceToken(ctx, params)
}

// NotifyConnectionIssue pushes a connection-health alert to every
// active device of the user. Delivery failures are logged, not
// returned; a dead device token must never fail a sync.
func (s *Service) NotifyConnectionIssue(ctx context.Context, userID int64, institutionName, message string) {
	if s.messenger == nil {
		return
	}

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		logger.Get().Errorw("failed to load device tokens for connection alert",
			"user_id", userID, "error", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Token)
	}

	title := fmt.Sprintf("Problema na conexão com %s", institutionName)
	data := map[string]string{"type": "connection_issue", "institution": institutionName}
	if err := s.messenger.SendMulticast(ctx, values, title, message, data); err != nil {
		logger.Get().Errorw("failed to push connection alert",
			"user_id", userID, "institution", institutionName, "error", err)
	}
}
