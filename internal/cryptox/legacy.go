package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"unicode/utf8"

	"github.com/dmitrijs2005/giftvault/internal/common"
)

// legacyPrefix is base64("Salted__"), the OpenSSL envelope header emitted by
// CryptoJS.AES.encrypt when it is given a string key.
const legacyPrefix = "U2FsdGVkX1"

var legacyMagic = []byte("Salted__")

// openLegacy decrypts cards minted by the web client, which encrypted
// JSON.stringify(payload) with CryptoJS.AES under the hex SHA-256 of the passphrase.
func openLegacy(encoded, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < 16+aes.BlockSize || !bytes.Equal(raw[:8], legacyMagic) {
		return nil, common.ErrDecryption
	}
	salt := raw[8:16]
	ct := raw[16:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, common.ErrDecryption
	}

	sum := sha256.Sum256([]byte(passphrase))
	material := []byte(hex.EncodeToString(sum[:]))
	key, iv := evpBytesToKey(material, salt, 32, aes.BlockSize)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(plain) {
		return nil, common.ErrDecryption
	}
	return plain, nil
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and a single iteration.
func evpBytesToKey(password, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var (
		out  []byte
		prev []byte
	)
	for len(out) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen], out[keyLen : keyLen+ivLen]
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, common.ErrDecryption
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, common.ErrDecryption
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, common.ErrDecryption
		}
	}
	return b[:len(b)-n], nil
}
