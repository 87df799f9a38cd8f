package auth

import (
	"log/slog"

	"github.com/samber/lo"
)

type authenticator struct {
	authorizedUserIDs []int64
}

// NewAuthenticator restricts the bot to the given Telegram users. With no
// IDs every user is allowed.
func NewAuthenticator(authorizedUserIDs []int64) *authenticator {
	if len(authorizedUserIDs) == 0 {
		slog.Info("telegram access is open to all users")
	} else {
		slog.Info("telegram authorized user IDs", "user_ids", authorizedUserIDs)
	}

	return &authenticator{
		authorizedUserIDs: lo.Uniq(authorizedUserIDs),
	}
}

func (a *authenticator) IsAuthorized(userID int64) bool {
	return len(a.authorizedUserIDs) == 0 || lo.Contains(a.authorizedUserIDs, userID)
}
