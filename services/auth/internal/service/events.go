package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/shop_auth/pkg/logging"
)

const TopicUserEvents = "user_events"

const (
	EventUserRegistered     = "user_registered"
	EventUserVerified       = "user_verified"
	EventUserLoggedIn       = "user_logged_in"
	EventAccessTokenRotated = "access_token_rotated"
	EventUserLoggedOut      = "user_logged_out"
)

type UserEvent struct {
	Type     string    `json:"type"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// publish never fails the caller; a lost event is only logged.
func (s *AuthService) publish(ctx context.Context, eventType, username string) {
	if s.events == nil {
		return
	}
	ev := UserEvent{Type: eventType, Username: username, At: s.clock()}
	if err := s.events.PublishEvent(ctx, TopicUserEvents, username, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "event", eventType, "username", username, "error", err)
	}
}
