// Package store keeps console-local state: browser sessions, their chat
// transcripts and the operators allowed to log in.
package store

import (
	"context"
	"errors"
	"time"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

var ErrNotFound = errors.New("record not found")

type Store interface {
	// Session returns ErrNotFound for unknown and expired sessions.
	Session(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	AppendMessages(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error
	Messages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)

	Operator(ctx context.Context, email string) (*models.Operator, error)
	SaveOperator(ctx context.Context, op *models.Operator) error
	CountOperators(ctx context.Context) (int64, error)
}
