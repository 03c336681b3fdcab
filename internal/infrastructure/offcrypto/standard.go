// Package offcrypto implements the ECMA-376 "standard" (binary)
// encryption scheme used by password-protected Office packages inside an
// OLE2 container: an EncryptionInfo descriptor plus an EncryptedPackage
// stream holding the AES-ECB encrypted zip payload.
package offcrypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/kirillkom/textmill/internal/core/ports"
)

const (
	spinCount = 50000

	algAES128 = 0x660E
	algAES192 = 0x660F
	algAES256 = 0x6610

	hashSHA1 = 0x8004
)

type Source struct{}

func NewSource() *Source { return &Source{} }

func (s *Source) DecryptorFor(ctx context.Context, c ports.Container) (ports.Decryptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infoStream, ok := c.Stream("EncryptionInfo")
	if !ok {
		return nil, errors.New("EncryptionInfo stream missing")
	}
	info, err := io.ReadAll(infoStream)
	if err != nil {
		return nil, fmt.Errorf("read EncryptionInfo: %w", err)
	}
	pkgStream, ok := c.Stream("EncryptedPackage")
	if !ok {
		return nil, errors.New("EncryptedPackage stream missing")
	}
	pkg, err := io.ReadAll(pkgStream)
	if err != nil {
		return nil, fmt.Errorf("read EncryptedPackage: %w", err)
	}
	return newStandardDecryptor(info, pkg)
}

type standardDecryptor struct {
	keyBytes        int
	salt            []byte
	encVerifier     []byte
	encVerifierHash []byte
	pkg             []byte

	key []byte
}

func newStandardDecryptor(info, pkg []byte) (*standardDecryptor, error) {
	if len(info) < 8 {
		return nil, errors.New("EncryptionInfo truncated")
	}
	vMajor := binary.LittleEndian.Uint16(info[0:2])
	vMinor := binary.LittleEndian.Uint16(info[2:4])
	if vMajor == 4 && vMinor == 4 {
		return nil, errors.New("agile encryption descriptor not supported")
	}
	if vMinor != 2 || (vMajor != 2 && vMajor != 3 && vMajor != 4) {
		return nil, fmt.Errorf("unsupported encryption version %d.%d", vMajor, vMinor)
	}

	headerSize := int(binary.LittleEndian.Uint32(info[8:12]))
	if 12+headerSize+4 > len(info) {
		return nil, errors.New("encryption header overruns EncryptionInfo")
	}
	header := info[12 : 12+headerSize]
	if len(header) < 24 {
		return nil, errors.New("encryption header truncated")
	}
	algID := binary.LittleEndian.Uint32(header[8:12])
	algIDHash := binary.LittleEndian.Uint32(header[12:16])
	keyBits := int(binary.LittleEndian.Uint32(header[16:20]))

	switch algID {
	case algAES128, algAES192, algAES256:
	default:
		return nil, fmt.Errorf("unsupported cipher algorithm %#x", algID)
	}
	if algIDHash != hashSHA1 {
		return nil, fmt.Errorf("unsupported hash algorithm %#x", algIDHash)
	}
	if keyBits != 128 && keyBits != 192 && keyBits != 256 {
		return nil, fmt.Errorf("unsupported key size %d", keyBits)
	}

	verifier := info[12+headerSize:]
	if len(verifier) < 4 {
		return nil, errors.New("encryption verifier truncated")
	}
	saltSize := int(binary.LittleEndian.Uint32(verifier[0:4]))
	if saltSize != 16 || len(verifier) < 4+saltSize+16+4+32 {
		return nil, errors.New("encryption verifier malformed")
	}
	salt := verifier[4 : 4+saltSize]
	encVerifier := verifier[4+saltSize : 4+saltSize+16]
	encVerifierHash := verifier[4+saltSize+16+4 : 4+saltSize+16+4+32]

	return &standardDecryptor{
		keyBytes:        keyBits / 8,
		salt:            salt,
		encVerifier:     encVerifier,
		encVerifierHash: encVerifierHash,
		pkg:             pkg,
	}, nil
}

// Unlock derives the AES key from the password and checks it against the
// verifier pair. A wrong password returns (false, nil).
func (d *standardDecryptor) Unlock(password string) (bool, error) {
	key := deriveKey(password, d.salt, d.keyBytes)

	block, err := aes.NewCipher(key)
	if err != nil {
		return false, fmt.Errorf("init cipher: %w", err)
	}
	verifier := ecbDecrypt(block, d.encVerifier)
	verifierHash := ecbDecrypt(block, d.encVerifierHash)

	expected := sha1.Sum(verifier)
	if subtle.ConstantTimeCompare(expected[:], verifierHash[:sha1.Size]) != 1 {
		return false, nil
	}
	d.key = key
	return true, nil
}

// OpenPackage decrypts the EncryptedPackage stream. The first 8 bytes
// carry the plaintext size; the remainder is the AES-ECB ciphertext.
func (d *standardDecryptor) OpenPackage() (io.Reader, error) {
	if d.key == nil {
		return nil, errors.New("package is locked")
	}
	if len(d.pkg) < 8 {
		return nil, errors.New("EncryptedPackage truncated")
	}
	size := binary.LittleEndian.Uint64(d.pkg[0:8])
	ciphertext := d.pkg[8:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("EncryptedPackage not block aligned")
	}
	if size > uint64(len(ciphertext)) {
		return nil, errors.New("EncryptedPackage size prefix out of range")
	}

	block, err := aes.NewCipher(d.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plain := ecbDecrypt(block, ciphertext)
	return bytes.NewReader(plain[:size]), nil
}

// deriveKey runs the standard-encryption key derivation: a 50000-round
// SHA-1 chain over the salted password, then the 0x36/0x5C expansion.
func deriveKey(password string, salt []byte, keyBytes int) []byte {
	pw := utf16LEBytes(password)

	h := sha1.Sum(append(append([]byte{}, salt...), pw...))
	buf := make([]byte, 4+sha1.Size)
	for i := uint32(0); i < spinCount; i++ {
		binary.LittleEndian.PutUint32(buf[0:4], i)
		copy(buf[4:], h[:])
		h = sha1.Sum(buf)
	}
	// Final block number 0 appended.
	final := make([]byte, sha1.Size+4)
	copy(final, h[:])
	hFinal := sha1.Sum(final)

	x1 := padHash(hFinal[:], 0x36)
	x2 := padHash(hFinal[:], 0x5C)
	x3 := append(x1[:], x2[:]...)
	return x3[:keyBytes]
}

func padHash(h []byte, pad byte) [sha1.Size]byte {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = pad
	}
	for i, b := range h {
		buf[i] ^= b
	}
	return sha1.Sum(buf)
}

func ecbDecrypt(block interface{ Decrypt(dst, src []byte) }, src []byte) []byte {
	out := make([]byte, len(src))
	for i := 0; i+aes.BlockSize <= len(src); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], src[i:i+aes.BlockSize])
	}
	return out
}

func utf16LEBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:2*i+2], u)
	}
	return out
}
