package crypto

import (
	"strings"
	"testing"

	"github.com/aramirez087/tuitbot/internal/core"
)

func testKey() []byte {
	key, _ := DeriveKey("test-encryption-key-for-unit-tests")
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	original := "x-oauth-access-token-value"

	encrypted, err := Encrypt(original, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if !IsEncrypted(encrypted) {
		t.Fatalf("expected encrypted value to start with %q prefix, got %q", "enc:", encrypted)
	}

	if encrypted == original {
		t.Fatal("encrypted value should differ from plaintext")
	}

	decrypted, err := Decrypt(encrypted, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if decrypted != original {
		t.Fatalf("round-trip failed: got %q, want %q", decrypted, original)
	}
}

func TestEncryptEmptyString(t *testing.T) {
	key := testKey()

	encrypted, err := Encrypt("", key)
	if err != nil {
		t.Fatalf("Encrypt empty: %v", err)
	}

	if encrypted != "" {
		t.Fatalf("encrypting empty string should return empty, got %q", encrypted)
	}
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	key := testKey()

	// A value without the "enc:" prefix should be returned as-is.
	plain := "legacy-plaintext-token"
	result, err := Decrypt(plain, key)
	if err != nil {
		t.Fatalf("Decrypt plaintext: %v", err)
	}

	if result != plain {
		t.Fatalf("plaintext passthrough failed: got %q, want %q", result, plain)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1 := testKey()
	key2, _ := DeriveKey("different-key-entirely")

	encrypted, err := Encrypt("secret", key1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(encrypted, key2)
	if err == nil {
		t.Fatal("expected error when decrypting with wrong key")
	}
}

func TestIsEncrypted(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"enc:abc123", true},
		{"enc:", true},
		{"ENC:abc", false},
		{"plaintext", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsEncrypted(tt.value); got != tt.want {
			t.Errorf("IsEncrypted(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestDeriveKey(t *testing.T) {
	key, err := DeriveKey("short")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d, want 32", len(key))
	}

	// Long passphrase should still produce a 32-byte key.
	longKey, err := DeriveKey(strings.Repeat("a", 100))
	if err != nil {
		t.Fatalf("DeriveKey long: %v", err)
	}
	if len(longKey) != 32 {
		t.Fatalf("long key length = %d, want 32", len(longKey))
	}

	// Different passphrases should produce different keys.
	key2, _ := DeriveKey("different")
	if string(key) == string(key2) {
		t.Fatal("different passphrases should produce different keys")
	}

	// Empty passphrase should error.
	_, err = DeriveKey("")
	if err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}

func TestEncryptUniqueNonces(t *testing.T) {
	key := testKey()
	plain := "same-plaintext"

	enc1, _ := Encrypt(plain, key)
	enc2, _ := Encrypt(plain, key)

	if enc1 == enc2 {
		t.Fatal("two encryptions of the same plaintext should produce different ciphertext (unique nonces)")
	}

	// Both should decrypt to the same value.
	dec1, _ := Decrypt(enc1, key)
	dec2, _ := Decrypt(enc2, key)

	if dec1 != plain || dec2 != plain {
		t.Fatalf("both should decrypt to %q, got %q and %q", plain, dec1, dec2)
	}
}

// ─── Account token-pair helpers ───

func TestEncryptDecryptTokenPair(t *testing.T) {
	key := testKey()

	original := core.Account{
		ID:           "01HQ1ACCOUNT0000000000000",
		Handle:       "tuitbot_dev",
		AccessToken:  "access-secret-123",
		RefreshToken: "refresh-secret-456",
	}

	encrypted, err := EncryptTokenPair(original, key)
	if err != nil {
		t.Fatalf("EncryptTokenPair: %v", err)
	}

	if !IsEncrypted(encrypted.AccessToken) {
		t.Fatalf("access_token should be encrypted, got %q", encrypted.AccessToken)
	}
	if !IsEncrypted(encrypted.RefreshToken) {
		t.Fatalf("refresh_token should be encrypted, got %q", encrypted.RefreshToken)
	}

	// Non-sensitive fields should be unchanged.
	if encrypted.Handle != original.Handle {
		t.Fatalf("handle changed: got %q, want %q", encrypted.Handle, original.Handle)
	}

	decrypted, err := DecryptTokenPair(encrypted, key)
	if err != nil {
		t.Fatalf("DecryptTokenPair: %v", err)
	}

	if decrypted.AccessToken != original.AccessToken {
		t.Fatalf("access_token round-trip: got %q, want %q", decrypted.AccessToken, original.AccessToken)
	}
	if decrypted.RefreshToken != original.RefreshToken {
		t.Fatalf("refresh_token round-trip: got %q, want %q", decrypted.RefreshToken, original.RefreshToken)
	}
}

func TestEncryptDecryptTokenPairNilKey(t *testing.T) {
	original := core.Account{
		AccessToken:  "plain-access",
		RefreshToken: "plain-refresh",
	}

	result, err := EncryptTokenPair(original, nil)
	if err != nil {
		t.Fatalf("EncryptTokenPair nil key: %v", err)
	}
	if result.AccessToken != original.AccessToken {
		t.Fatalf("nil key should not change access_token: got %q", result.AccessToken)
	}

	result, err = DecryptTokenPair(original, nil)
	if err != nil {
		t.Fatalf("DecryptTokenPair nil key: %v", err)
	}
	if result.AccessToken != original.AccessToken {
		t.Fatalf("nil key should not change access_token: got %q", result.AccessToken)
	}
}
