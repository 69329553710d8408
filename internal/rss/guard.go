package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Document guard defaults.
const (
	DefaultMaxEntityRefs        = 10000
	DefaultMaxGeneralEntityRefs = 5000
)

var (
	ErrDocumentTooLarge = errors.New("document too large")
	ErrDTDForbidden     = errors.New("document type declarations with internal subsets are forbidden")
	ErrEntityLimit      = errors.New("entity reference limit exceeded")
)

// Limits bound the resources a single feed document may consume.
type Limits struct {
	MaxBytes int64
	// MaxEntityRefs caps all references, numeric ones included.
	MaxEntityRefs int
	// MaxGeneralEntityRefs caps named references such as &amp;.
	MaxGeneralEntityRefs int
}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxFeedBytes
	}
	if l.MaxEntityRefs <= 0 {
		l.MaxEntityRefs = DefaultMaxEntityRefs
	}
	if l.MaxGeneralEntityRefs <= 0 {
		l.MaxGeneralEntityRefs = DefaultMaxGeneralEntityRefs
	}
	return l
}

// checkDocument rejects documents that are oversized, declare entities or
// an internal DTD subset, or carry more entity references than allowed.
// DOCTYPE lines with only an external identifier pass; nothing external is ever loaded.
func checkDocument(data []byte, l Limits) error {
	if int64(len(data)) > l.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, len(data), l.MaxBytes)
	}

	if err := checkProlog(data); err != nil {
		return err
	}

	general, total := countEntityRefs(data)
	if general > l.MaxGeneralEntityRefs {
		return fmt.Errorf("%w: %d named references, limit %d", ErrEntityLimit, general, l.MaxGeneralEntityRefs)
	}
	if total > l.MaxEntityRefs {
		return fmt.Errorf("%w: %d references, limit %d", ErrEntityLimit, total, l.MaxEntityRefs)
	}
	return nil
}

// checkProlog walks tokens up to the root element looking at directives.
func checkProlog(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Syntax problems are reported by the feed parser.
			return nil
		}

		switch t := tok.(type) {
		case xml.StartElement:
			return nil
		case xml.Directive:
			if bytes.Contains(t, []byte("ENTITY")) || bytes.ContainsRune(t, '[') {
				return ErrDTDForbidden
			}
		}
	}
}

// countEntityRefs counts &name; (general) and &#...; (character) references.
func countEntityRefs(data []byte) (general, total int) {
	for i := 0; i < len(data); i++ {
		if data[i] != '&' {
			continue
		}
		j := i + 1
		for j < len(data) && isRefByte(data[j]) {
			j++
		}
		if j == i+1 || j == len(data) || data[j] != ';' {
			continue
		}
		total++
		if data[i+1] != '#' {
			general++
		}
		i = j
	}
	return general, total
}

func isRefByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	return b == '#' || b == '_' || b == '-' || b == '.' || b == ':'
}
