package sqlite3

import (
	"fmt"

	"github.com/aramirez087/tuitbot/internal/core"
	atcrypto "github.com/aramirez087/tuitbot/internal/crypto"
)

func encryptAccount(acct core.Account, key []byte) (core.Account, error) {
	encrypted, err := atcrypto.EncryptTokenPair(acct, key)
	if err != nil {
		return core.Account{}, fmt.Errorf("encrypt account token pair: %w", err)
	}
	return encrypted, nil
}

func decryptAccount(acct core.Account, key []byte) (core.Account, error) {
	decrypted, err := atcrypto.DecryptTokenPair(acct, key)
	if err != nil {
		return core.Account{}, fmt.Errorf("decrypt account token pair: %w", err)
	}
	return decrypted, nil
}
