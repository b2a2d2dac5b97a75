package storage

import (
	"errors"
	"log/slog"
	"strings"

	"ArxivDigest/internal/domain"
)

// digestRow is a digest document as it is stored: topics are the raw
// comma-separated declaration entered by the user.
type digestRow struct {
	UserID      string
	Name        string
	Topics      string
	Description string
}

// groupUsers parses the rows into users in first-seen order. Rows without a
// user id are dropped; a digest with a malformed topic declaration is logged
// and skipped without affecting the user's other digests.
func groupUsers(rows []digestRow, logger *slog.Logger) []domain.User {
	index := map[string]int{}
	var users []domain.User

	for _, row := range rows {
		userID := strings.TrimSpace(row.UserID)
		if userID == "" {
			continue
		}

		topics, err := domain.ParseTopics(row.Topics)
		if err != nil {
			var malformed *domain.MalformedTopicError
			if errors.As(err, &malformed) && logger != nil {
				logger.Warn("skip digest with malformed topics",
					"user", userID, "digest", row.Name, "token", malformed.Token)
			}
			continue
		}

		pos, ok := index[userID]
		if !ok {
			pos = len(users)
			index[userID] = pos
			users = append(users, domain.User{ID: userID})
		}
		users[pos].Digests = append(users[pos].Digests, domain.Digest{
			Name:      row.Name,
			Topics:    topics,
			Interests: row.Description,
		})
	}

	return users
}
