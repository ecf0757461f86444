package crypto

import (
	"fmt"

	"github.com/aramirez087/tuitbot/internal/core"
)

// EncryptTokenPair encrypts an Account's access and refresh token ciphertext
// fields in place. If key is nil, the account is returned unchanged (encryption
// disabled — tokens are stored as plaintext, matching StoreSQLite/StorePostgres
// with no encryption_key configured).
func EncryptTokenPair(acct core.Account, key []byte) (core.Account, error) {
	if key == nil {
		return acct, nil
	}

	if acct.AccessToken != "" {
		enc, err := Encrypt(acct.AccessToken, key)
		if err != nil {
			return acct, fmt.Errorf("encrypt access_token: %w", err)
		}
		acct.AccessToken = enc
	}

	if acct.RefreshToken != "" {
		enc, err := Encrypt(acct.RefreshToken, key)
		if err != nil {
			return acct, fmt.Errorf("encrypt refresh_token: %w", err)
		}
		acct.RefreshToken = enc
	}

	return acct, nil
}

// DecryptTokenPair decrypts an Account's access and refresh token ciphertext
// fields in place. If key is nil, the account is returned unchanged. Values
// without the "enc:" prefix pass through unchanged (legacy plaintext).
func DecryptTokenPair(acct core.Account, key []byte) (core.Account, error) {
	if key == nil {
		return acct, nil
	}

	if acct.AccessToken != "" {
		dec, err := Decrypt(acct.AccessToken, key)
		if err != nil {
			return acct, fmt.Errorf("decrypt access_token: %w", err)
		}
		acct.AccessToken = dec
	}

	if acct.RefreshToken != "" {
		dec, err := Decrypt(acct.RefreshToken, key)
		if err != nil {
			return acct, fmt.Errorf("decrypt refresh_token: %w", err)
		}
		acct.RefreshToken = dec
	}

	return acct, nil
}
