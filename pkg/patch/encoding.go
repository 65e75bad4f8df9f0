package patch

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the text encoding of a patch input. Outputs are always UTF-8.
type Encoding string

const (
	// EncodingDefault reads the input as UTF-8, the platform default.
	EncodingDefault Encoding = "utf-8"
	// EncodingUTF16 honours a byte order mark and falls back to little endian.
	EncodingUTF16 Encoding = "utf-16"
	// EncodingUTF16LE reads little endian UTF-16 without BOM detection.
	EncodingUTF16LE Encoding = "utf-16le"
	// EncodingUTF16BE reads big endian UTF-16 without BOM detection.
	EncodingUTF16BE Encoding = "utf-16be"
)

// EncodingNames lists the accepted spellings for ParseEncoding.
var EncodingNames = []string{"default", "utf-8", "utf8", "utf-16", "utf16", "utf-16le", "utf16le", "utf-16be", "utf16be"}

// ParseEncoding maps a user supplied name to an Encoding. An empty name selects
// EncodingDefault.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "utf-8", "utf8":
		return EncodingDefault, nil
	case "utf-16", "utf16":
		return EncodingUTF16, nil
	case "utf-16le", "utf16le":
		return EncodingUTF16LE, nil
	case "utf-16be", "utf16be":
		return EncodingUTF16BE, nil
	default:
		return "", &Error{Code: CodeInvalidJob, Message: fmt.Sprintf("unsupported encoding %q", name)}
	}
}

// Decode converts raw input bytes into text using enc.
func Decode(data []byte, enc Encoding) (string, error) {
	if enc == "" || enc == EncodingDefault {
		if !utf8.Valid(data) {
			return "", &Error{Code: CodeDecode, Message: "input is not valid UTF-8"}
		}
		return string(data), nil
	}

	codec, err := enc.codec()
	if err != nil {
		return "", err
	}
	// The x/text decoder substitutes U+FFFD for malformed input; reject it first.
	if err := checkUTF16(data, enc); err != nil {
		return "", err
	}
	decoded, _, err := transform.Bytes(codec.NewDecoder(), data)
	if err != nil {
		return "", &Error{Code: CodeDecode, Message: fmt.Sprintf("cannot decode input as %s", enc), Err: err}
	}
	return string(decoded), nil
}

func (e Encoding) codec() (encoding.Encoding, error) {
	switch e {
	case EncodingUTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	default:
		return nil, &Error{Code: CodeInvalidJob, Message: fmt.Sprintf("unsupported encoding %q", string(e))}
	}
}

// checkUTF16 reports an odd byte count or an unpaired surrogate in data.
func checkUTF16(data []byte, enc Encoding) error {
	if len(data)%2 != 0 {
		return &Error{Code: CodeDecode, Message: fmt.Sprintf("%s input has an odd number of bytes (%d)", enc, len(data))}
	}
	order := binary.ByteOrder(binary.LittleEndian)
	offset := 0
	switch enc {
	case EncodingUTF16BE:
		order = binary.BigEndian
	case EncodingUTF16:
		if len(data) >= 2 {
			switch {
			case data[0] == 0xFE && data[1] == 0xFF:
				order, offset = binary.BigEndian, 2
			case data[0] == 0xFF && data[1] == 0xFE:
				offset = 2
			}
		}
	}

	pendingHigh := -1
	for i := offset; i < len(data); i += 2 {
		unit := order.Uint16(data[i:])
		switch {
		case unit >= 0xD800 && unit <= 0xDBFF:
			if pendingHigh >= 0 {
				return unpairedSurrogate(enc, pendingHigh)
			}
			pendingHigh = i
		case unit >= 0xDC00 && unit <= 0xDFFF:
			if pendingHigh < 0 {
				return unpairedSurrogate(enc, i)
			}
			pendingHigh = -1
		default:
			if pendingHigh >= 0 {
				return unpairedSurrogate(enc, pendingHigh)
			}
		}
	}
	if pendingHigh >= 0 {
		return unpairedSurrogate(enc, pendingHigh)
	}
	return nil
}

func unpairedSurrogate(enc Encoding, offset int) error {
	return &Error{Code: CodeDecode, Message: fmt.Sprintf("%s input has an unpaired surrogate at byte %d", enc, offset)}
}
