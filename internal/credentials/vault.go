package credentials

import (
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
	"go.uber.org/zap"

	"ideajournal/internal/logging"
)

var ErrRevealFailed = errors.New("stored password could not be decrypted")

// PasswordVault owns the reversible copy of user passwords. Login never
// needs it; it exists because operators have relied on recovering
// passwords. Seal runs at signup, Reveal only from the CLI, and every
// Reveal is written to the audit log.
type PasswordVault struct {
	key   *fernet.Key
	audit *zap.Logger
}

func NewPasswordVault(masterKey string, audit *zap.Logger) (*PasswordVault, error) {
	key, err := DeriveKey(masterKey)
	if err != nil {
		return nil, err
	}
	return &PasswordVault{
		key:   key,
		audit: logging.OrNop(audit).Named("password_vault"),
	}, nil
}

func (v *PasswordVault) Seal(password string) (string, error) {
	token, err := seal(v.key, []byte(password))
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// Reveal decrypts the stored copy for username. reason is recorded with the
// audit entry.
func (v *PasswordVault) Reveal(username string, user User, reason string) (string, error) {
	v.audit.Warn("password revealed",
		zap.String("username", username),
		zap.String("reason", reason),
	)
	plaintext := open(v.key, []byte(user.PasswordEncrypted))
	if plaintext == nil {
		return "", fmt.Errorf("%w: %s", ErrRevealFailed, username)
	}
	return string(plaintext), nil
}
