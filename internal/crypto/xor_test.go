package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXORRoundTrip(t *testing.T) {
	key := []byte{0x13, 0x37, 0xbe, 0xef}
	enc := EncryptXOR([]byte("Colossal Modder"), key, 0x5e, 0x3d)
	dec := &XOR{Key: key, Seed: 0x5e, Step: 0x3d}

	out, err := dec.Decrypt(base64.StdEncoding.EncodeToString(enc))
	require.NoError(t, err)
	assert.Equal(t, "Colossal Modder", out)
}

func TestNewXOR(t *testing.T) {
	d, err := NewXOR("", 0, 0)
	require.NoError(t, err)
	assert.IsType(t, Plain{}, d)

	d, err = NewXOR("a1b2", 7, 9)
	require.NoError(t, err)
	assert.Equal(t, &XOR{Key: []byte{0xa1, 0xb2}, Seed: 7, Step: 9}, d)

	_, err = NewXOR("zz", 0, 0)
	assert.Error(t, err)
}

func TestXORRejectsGarbage(t *testing.T) {
	_, err := (&XOR{Key: []byte{1}}).Decrypt("not base64!")
	assert.Error(t, err)
}
