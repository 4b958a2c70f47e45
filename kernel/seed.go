package kernel

import (
	"context"
	"errors"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/policy-console/models"
	"git.sr.ht/~aondrejcak/policy-console/store"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")

	argonConfig = argon2.DefaultConfig()
)

func HashPassword(password string) (string, error) {
	encoded, err := argonConfig.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Seed creates the operator named by OPERATOR_EMAIL if it does not exist yet.
func (art *AppRuntime) Seed(ctx context.Context) error {
	if !art.AuthEnabled() {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(art.OperatorEmail))
	if email == "" || art.OperatorPasswordHash == "" {
		n, err := art.Store.CountOperators(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			log.Warn().Msg("operator login is enabled but no operator exists, set OPERATOR_EMAIL and OPERATOR_PASSWORD_HASH")
		}
		return nil
	}

	_, err := art.Store.Operator(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	op := &models.Operator{
		FullName:     "Operator",
		Email:        email,
		PasswordHash: art.OperatorPasswordHash,
		Role:         models.OPERATOR_ROLE_ADMIN,
	}
	if err := art.Store.SaveOperator(ctx, op); err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("created operator")
	return nil
}

// AuthenticateOperator checks an email/password pair against the stored argon2 hash.
func (art *AppRuntime) AuthenticateOperator(ctx context.Context, email, password string) (*models.Operator, error) {
	op, err := art.Store.Operator(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := argon2.VerifyEncoded([]byte(password), []byte(op.PasswordHash))
	if err != nil {
		log.Warn().Err(err).Str("email", op.Email).Msg("stored password hash is unreadable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return op, nil
}
