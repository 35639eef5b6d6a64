// Package encoding picks a text encoding for raw subtitle bytes from a small
// candidate set: byte-order-mark signatures first, then strict UTF-8, then a
// configured legacy 8-bit code page. It never guesses beyond that set.
package encoding

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Charset names returned by detection.
const (
	UTF8    = "utf-8"
	UTF8BOM = "utf-8-sig"
	UTF16LE = "utf-16le"
	UTF16BE = "utf-16be"
)

// DefaultLegacy is the fallback code page when none is configured
// (Vietnamese subtitles are the common legacy case for this tool).
const DefaultLegacy = "windows-1258"

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Detection reports which charset was selected and how sure we are. BOM
// matches are the only high-confidence signal.
type Detection struct {
	Charset   string
	Confident bool
}

// Error is returned when a file's bytes decode under none of the candidate
// encodings. It is a per-file failure, never fatal to a batch.
type Error struct {
	Path  string
	Tried []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("EncodingError: %s not decodable as %s", e.Path, strings.Join(e.Tried, ", "))
}

// Detector resolves bytes to text using a fixed candidate order.
type Detector struct {
	legacyName string
	legacy     xencoding.Encoding
}

// NewDetector builds a detector with the given legacy code page name
// (IANA/WHATWG label, e.g. "windows-1258"). An empty name selects
// DefaultLegacy.
func NewDetector(legacyName string) (*Detector, error) {
	if legacyName == "" {
		legacyName = DefaultLegacy
	}
	enc, err := htmlindex.Get(legacyName)
	if err != nil {
		return nil, errors.Errorf("unknown legacy encoding %q: %w", legacyName, err)
	}
	return &Detector{legacyName: legacyName, legacy: enc}, nil
}

// LegacyName returns the configured legacy code page label.
func (d *Detector) LegacyName() string {
	return d.legacyName
}

// Detect inspects raw bytes and selects an encoding without decoding the
// whole payload beyond what validation requires.
func (d *Detector) Detect(data []byte) (Detection, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return Detection{Charset: UTF8BOM, Confident: true}, nil
	case bytes.HasPrefix(data, bomUTF16BE):
		return Detection{Charset: UTF16BE, Confident: true}, nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return Detection{Charset: UTF16LE, Confident: true}, nil
	}
	if utf8.Valid(data) {
		return Detection{Charset: UTF8}, nil
	}
	if _, err := d.decodeLegacy(data); err == nil {
		return Detection{Charset: d.legacyName}, nil
	}
	return Detection{}, &Error{Tried: d.tried()}
}

// Decode detects the encoding of data and returns the decoded text. The
// path parameter is only used to name the file in errors.
func (d *Detector) Decode(path string, data []byte) (string, Detection, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), Detection{Charset: UTF8BOM, Confident: true}, nil
	case bytes.HasPrefix(data, bomUTF16BE):
		text, err := decodeUTF16(data, unicode.BigEndian)
		if err != nil {
			return "", Detection{}, &Error{Path: path, Tried: d.tried()}
		}
		return text, Detection{Charset: UTF16BE, Confident: true}, nil
	case bytes.HasPrefix(data, bomUTF16LE):
		text, err := decodeUTF16(data, unicode.LittleEndian)
		if err != nil {
			return "", Detection{}, &Error{Path: path, Tried: d.tried()}
		}
		return text, Detection{Charset: UTF16LE, Confident: true}, nil
	}

	if utf8.Valid(data) {
		return string(data), Detection{Charset: UTF8}, nil
	}

	text, err := d.decodeLegacy(data)
	if err != nil {
		return "", Detection{}, &Error{Path: path, Tried: d.tried()}
	}
	return text, Detection{Charset: d.legacyName}, nil
}

// decodeLegacy decodes via the configured code page. x/text charmap decoders
// substitute U+FFFD for unmapped bytes instead of failing, so the
// replacement rune is treated as a decode failure here to keep the
// candidate-set contract strict.
func (d *Detector) decodeLegacy(data []byte) (string, error) {
	out, err := d.legacy.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Errorf("decoding %s: %w", d.legacyName, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", errors.Errorf("bytes outside %s repertoire", d.legacyName)
	}
	return string(out), nil
}

func decodeUTF16(data []byte, endian unicode.Endianness) (string, error) {
	dec := unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return "", errors.Errorf("decoding utf-16: %w", err)
	}
	return string(out), nil
}

func (d *Detector) tried() []string {
	return []string{UTF8BOM, UTF16LE, UTF16BE, UTF8, d.legacyName}
}
