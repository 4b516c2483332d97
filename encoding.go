package pmx

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextEncoding selects how strings are stored on the wire. Both
// variants are length prefixed with a byte count, not a rune count.
type TextEncoding uint8

const (
	TEXT_UTF16 TextEncoding = 0 // UTF-16 little endian, no BOM
	TEXT_UTF8  TextEncoding = 1
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func (e TextEncoding) String() string {
	switch e {
	case TEXT_UTF16:
		return "utf16le"
	case TEXT_UTF8:
		return "utf8"
	}
	return fmt.Sprintf("TextEncoding(%d)", uint8(e))
}

func (e TextEncoding) valid() bool {
	return e == TEXT_UTF16 || e == TEXT_UTF8
}

func (e TextEncoding) decode(b []byte) (string, error) {
	switch e {
	case TEXT_UTF16:
		if len(b)%2 != 0 {
			return "", errors.Wrapf(ErrTextEncoding, "odd utf16 payload length %d", len(b))
		}
		if !validUTF16LE(b) {
			return "", errors.Wrap(ErrTextEncoding, "unpaired utf16 surrogate")
		}
		s, _, err := transform.Bytes(utf16le.NewDecoder(), b)
		if err != nil {
			return "", errors.Wrapf(ErrTextEncoding, "utf16 decode: %v", err)
		}
		return string(s), nil
	case TEXT_UTF8:
		if !utf8.Valid(b) {
			return "", errors.Wrap(ErrTextEncoding, "invalid utf8 payload")
		}
		return string(b), nil
	}
	return "", errors.Wrapf(ErrTextEncoding, "unsupported encoding %d", uint8(e))
}

func (e TextEncoding) encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errors.Wrap(ErrTextEncoding, "string is not valid utf8")
	}
	switch e {
	case TEXT_UTF16:
		b, _, err := transform.Bytes(utf16le.NewEncoder(), []byte(s))
		if err != nil {
			return nil, errors.Wrapf(ErrTextEncoding, "utf16 encode: %v", err)
		}
		return b, nil
	case TEXT_UTF8:
		return []byte(s), nil
	}
	return nil, errors.Wrapf(ErrTextEncoding, "unsupported encoding %d", uint8(e))
}

// validUTF16LE reports whether every surrogate unit in b is part of a
// proper high+low pair. The x/text decoder replaces broken pairs with
// U+FFFD instead of failing, which would not survive a reencode.
func validUTF16LE(b []byte) bool {
	for i := 0; i+1 < len(b); i += 2 {
		c := rune(uint16(b[i]) | uint16(b[i+1])<<8)
		if !utf16.IsSurrogate(c) {
			continue
		}
		if c >= 0xDC00 {
			return false
		}
		if i+3 >= len(b) {
			return false
		}
		c2 := rune(uint16(b[i+2]) | uint16(b[i+3])<<8)
		if c2 < 0xDC00 || c2 > 0xDFFF {
			return false
		}
		i += 2
	}
	return true
}
