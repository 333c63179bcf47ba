package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Decrypter turns an encrypted header string into its plain form.
type Decrypter interface {
	Decrypt(cipherText string) (string, error)
}

// Plain returns the cipher text unchanged. Used when no key is configured.
type Plain struct{}

func (Plain) Decrypt(cipherText string) (string, error) { return cipherText, nil }

// XOR decrypts base64 text using a chained XOR over a repeating key:
//
//	out[i] = (data[i] ^ Key[i%len(Key)]) - chain
//	chain  = data[i] + Step
type XOR struct {
	Key  []byte
	Seed byte
	Step byte
}

// NewXOR parses a hex encoded key; seed and step drive the chain. An empty
// key yields Plain.
func NewXOR(hexKey string, seed, step byte) (Decrypter, error) {
	if hexKey == "" {
		return Plain{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: parse author key")
	}
	if len(key) == 0 {
		return Plain{}, nil
	}
	return &XOR{Key: key, Seed: seed, Step: step}, nil
}

func (x *XOR) Decrypt(cipherText string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", errors.Wrap(err, "crypto: author is not base64")
	}
	out := DecryptXOR(data, x.Key, x.Seed, x.Step)
	if !utf8.Valid(out) {
		return "", errors.New("crypto: decrypted author is not valid UTF-8")
	}
	return string(out), nil
}

// DecryptXOR applies the chained XOR. EncryptXOR is its inverse.
func DecryptXOR(data, key []byte, seed, step byte) []byte {
	out := make([]byte, len(data))
	chain := seed
	for i, b := range data {
		out[i] = (b ^ key[i%len(key)]) - chain
		chain = b + step
	}
	return out
}

func EncryptXOR(plain, key []byte, seed, step byte) []byte {
	out := make([]byte, len(plain))
	chain := seed
	for i, p := range plain {
		b := (p + chain) ^ key[i%len(key)]
		out[i] = b
		chain = b + step
	}
	return out
}
