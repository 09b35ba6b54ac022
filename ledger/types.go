package ledger

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// version bytes of stellar strkey encoding
const (
	VersionAccount  byte = 6 << 3 // 'G...'
	VersionContract byte = 2 << 3 // 'C...'
)

const addressLen = 56

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrInvalidBytes   = errors.New("invalid bytes")
	ErrInvalidInt128  = errors.New("invalid i128")
)

// Address is an account or contract address. In text form it's
// a 56 character strkey starting with 'G' (account) or 'C' (contract)
type Address struct {
	Version byte
	Key     [32]byte
}

// GenerateAddress returns a random account address
func GenerateAddress() Address {
	a := Address{Version: VersionAccount}
	_, err := rand.Read(a.Key[:])
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddress decodes and verifies checksum of strkey
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != addressLen {
		return a, fmt.Errorf("%w: '%s' has length %d, expected %d", ErrInvalidAddress, s, len(s), addressLen)
	}
	d, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: '%s': %s", ErrInvalidAddress, s, err)
	}
	// version byte + key + crc16
	if len(d) != 1+32+2 {
		return a, fmt.Errorf("%w: '%s' decodes to %d bytes", ErrInvalidAddress, s, len(d))
	}
	a.Version = d[0]
	if a.Version != VersionAccount && a.Version != VersionContract {
		return a, fmt.Errorf("%w: '%s' has unknown version byte 0x%x", ErrInvalidAddress, s, a.Version)
	}
	payload := d[:33]
	got := binary.LittleEndian.Uint16(d[33:])
	if exp := crc16(payload); got != exp {
		return a, fmt.Errorf("%w: '%s' has invalid checksum", ErrInvalidAddress, s)
	}
	copy(a.Key[:], d[1:33])
	return a, nil
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	d := make([]byte, 0, 35)
	d = append(d, a.Version)
	d = append(d, a.Key[:]...)
	d = binary.LittleEndian.AppendUint16(d, crc16(d))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(d)
}

// MarshalText encodes zero Address as empty string.
// Fails for addresses that ParseAddress would reject.
func (a Address) MarshalText() ([]byte, error) {
	if !a.IsZero() && a.Version != VersionAccount && a.Version != VersionContract {
		return nil, fmt.Errorf("%w: unknown version byte 0x%x", ErrInvalidAddress, a.Version)
	}
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(d []byte) error {
	if len(d) == 0 {
		*a = Address{}
		return nil
	}
	v, err := ParseAddress(string(d))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// crc16 is CRC-16/XMODEM
func crc16(d []byte) uint16 {
	var crc uint16
	for _, b := range d {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Bytes32 is a fixed-size 32 byte value, hex-encoded in text form
type Bytes32 [32]byte

// Bytes64 is a fixed-size 64 byte value, hex-encoded in text form
type Bytes64 [64]byte

func parseFixedHex(dst []byte, s []byte) error {
	if hex.DecodedLen(len(s)) != len(dst) {
		return fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidBytes, len(dst)*2, len(s))
	}
	if _, err := hex.Decode(dst, s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBytes, err)
	}
	return nil
}

func textToFixed(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%w: '%s' is %d bytes, max is %d", ErrInvalidBytes, s, len(s), len(dst))
	}
	copy(dst, s)
	return nil
}

// TextBytes32 stores s in Bytes32, padded with zeros
func TextBytes32(s string) (Bytes32, error) {
	var b Bytes32
	err := textToFixed(b[:], s)
	return b, err
}

// TextBytes64 stores s in Bytes64, padded with zeros
func TextBytes64(s string) (Bytes64, error) {
	var b Bytes64
	err := textToFixed(b[:], s)
	return b, err
}

func (b Bytes32) String() string {
	return hex.EncodeToString(b[:])
}

// Text returns data as string, without the zero padding
func (b Bytes32) Text() string {
	return string(bytes.TrimRight(b[:], "\x00"))
}

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes32) UnmarshalText(d []byte) error {
	return parseFixedHex(b[:], d)
}

func (b Bytes64) String() string {
	return hex.EncodeToString(b[:])
}

func (b Bytes64) Text() string {
	return string(bytes.TrimRight(b[:], "\x00"))
}

func (b Bytes64) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes64) UnmarshalText(d []byte) error {
	return parseFixedHex(b[:], d)
}

// Symbol is a short identifier: up to 32 characters a-z, A-Z, 0-9 and _
type Symbol string

const maxSymbolLen = 32

func ParseSymbol(s string) (Symbol, error) {
	if len(s) > maxSymbolLen {
		return "", fmt.Errorf("%w: '%s' is longer than %d characters", ErrInvalidSymbol, s, maxSymbolLen)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isValid := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isValid {
			return "", fmt.Errorf("%w: '%s' has invalid character '%c' at position %d", ErrInvalidSymbol, s, c, i)
		}
	}
	return Symbol(s), nil
}

func (s Symbol) MarshalText() ([]byte, error) {
	if _, err := ParseSymbol(string(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (s *Symbol) UnmarshalText(d []byte) error {
	v, err := ParseSymbol(string(d))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Int128 is a signed 128-bit integer in two's complement.
// In JSON it's a decimal string because JSON numbers lose precision past 2^53.
type Int128 struct {
	Hi int64
	Lo uint64
}

var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	mask64    = new(big.Int).SetUint64(^uint64(0))
)

func NewInt128(v int64) Int128 {
	return Int128{Hi: v >> 63, Lo: uint64(v)}
}

// Int128FromBig returns an error if v doesn't fit in 128 bits
func Int128FromBig(v *big.Int) (Int128, error) {
	if v.Cmp(maxInt128) > 0 || v.Cmp(minInt128) < 0 {
		return Int128{}, fmt.Errorf("%w: %s is out of range", ErrInvalidInt128, v)
	}
	lo := new(big.Int).And(v, mask64).Uint64()
	hi := new(big.Int).Rsh(v, 64).Int64()
	return Int128{Hi: hi, Lo: lo}, nil
}

func ParseInt128(s string) (Int128, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int128{}, fmt.Errorf("%w: '%s' is not a decimal number", ErrInvalidInt128, s)
	}
	return Int128FromBig(v)
}

func (i Int128) Big() *big.Int {
	v := big.NewInt(i.Hi)
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(i.Lo))
}

func (i Int128) String() string {
	// fast path for values that fit in int64
	if (i.Hi == 0 && i.Lo>>63 == 0) || (i.Hi == -1 && i.Lo>>63 == 1) {
		return strconv.FormatInt(int64(i.Lo), 10)
	}
	return i.Big().String()
}

func (i Int128) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(i.String())), nil
}

// UnmarshalJSON accepts both "1000" and 1000
func (i *Int128) UnmarshalJSON(d []byte) error {
	s := string(d)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParseInt128(s)
	if err != nil {
		return err
	}
	*i = v
	return nil
}
