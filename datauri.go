package ggbexport

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const svgURIPrefix = "data:" + mimeSVG + ";utf8,"

// base64DataURI wraps a base64 payload as data:<mime>;base64,<payload>.
func base64DataURI(mime, payload string) string {
	return "data:" + mime + ";base64," + payload
}

// ensureDataURI returns s unchanged when it already is a data URI, otherwise
// treats it as a bare base64 payload.
func ensureDataURI(mime, s string) string {
	if strings.HasPrefix(s, "data:") {
		return s
	}
	return base64DataURI(mime, s)
}

// decodeDataURI strips the exact base64 prefix for mime and decodes the payload.
// A missing or different prefix is ErrDataURIPrefix.
func decodeDataURI(uri, mime string) ([]byte, error) {
	prefix := "data:" + mime + ";base64,"
	payload, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: want %q, got %q", ErrDataURIPrefix, prefix, head(uri, len(prefix)))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s payload: %v", ErrEngineExecution, mime, err)
	}
	return data, nil
}

// svgDataURI percent-encodes SVG markup into a data:image/svg+xml;utf8 URI.
func svgDataURI(markup string) string {
	return svgURIPrefix + encodeURIComponent(markup)
}

const upperHex = "0123456789ABCDEF"

// encodeURIComponent escapes s byte-wise like the JavaScript function of the
// same name: everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is %XX-encoded.
func encodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// head returns at most n bytes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
