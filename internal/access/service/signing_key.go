package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"gocloud.dev/secrets"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"

	// Register the keeper drivers usable in AUTH_JWT_SECRET_KEEPER_URI
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// minSigningKeyLength is the smallest HS256 key accepted.
const minSigningKeyLength = 32

// LoadSigningKey returns the credential signing key. Without a keeper URI the
// secret is used as is. With one, the secret is base64 ciphertext that the keeper
// decrypts (awskms://, gcpkms://, azurekeyvault://, hashivault://, base64key://).
func LoadSigningKey(ctx context.Context, secret, keeperURI string) ([]byte, error) {
	if secret == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "signing secret is not configured")
	}

	if keeperURI == "" {
		return checkKeyLength([]byte(secret))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "wrapped signing secret must be base64")
	}

	keeper, err := secrets.OpenKeeper(ctx, keeperURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets keeper: %w", err)
	}
	defer func() {
		_ = keeper.Close()
	}()

	key, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt signing secret: %w", err)
	}

	return checkKeyLength(key)
}

func checkKeyLength(key []byte) ([]byte, error) {
	if len(key) < minSigningKeyLength {
		return nil, apperrors.Wrap(
			apperrors.ErrInvalidInput,
			fmt.Sprintf("signing secret must be at least %d bytes", minSigningKeyLength),
		)
	}
	return key, nil
}
