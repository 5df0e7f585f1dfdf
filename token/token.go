// Package token implements the opaque, path-safe encoding that hides upstream stream URLs behind public proxy links.
//
// A token carries the upstream URL and the Referer the CDN expects. Each part is encoded as
// unpadded base64url and the parts are joined with a dot, which is outside that alphabet, so a
// token never needs escaping inside a URL path segment. Tokens are not encrypted.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const separator = "."

// ErrMalformed is returned when a token cannot be decoded.
var ErrMalformed = errors.New("malformed stream token")

var encoding = base64.RawURLEncoding

// Encode packs an upstream URL and its referer into a single token.
func Encode(upstreamURL, referer string) string {
	return encoding.EncodeToString([]byte(upstreamURL)) + separator + encoding.EncodeToString([]byte(referer))
}

// Decode reverses Encode.
func Decode(tok string) (upstreamURL, referer string, err error) {
	rawURL, rawReferer, ok := strings.Cut(tok, separator)
	if !ok || rawURL == "" {
		return "", "", ErrMalformed
	}

	u, err := decodePart(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: url: %v", ErrMalformed, err)
	}

	r, err := decodePart(rawReferer)
	if err != nil {
		return "", "", fmt.Errorf("%w: referer: %v", ErrMalformed, err)
	}

	return u, r, nil
}

// decodePart accepts padded input too; older links were generated with padding.
func decodePart(s string) (string, error) {
	b, err := encoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
