package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// NewConfirmationKey 生成确认密钥，明文只发送给用户，库里只存哈希
func NewConfirmationKey() (plain, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = base64.RawURLEncoding.EncodeToString(buf)
	return plain, HashConfirmationKey(plain), nil
}

// HashConfirmationKey sha256 十六进制
func HashConfirmationKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
