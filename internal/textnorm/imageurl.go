package textnorm

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// ObfuscationMarker is "https:" in base64, which the shop CDN embeds as the
// last path segment of proxied image URLs.
const ObfuscationMarker = "/aHR0cHM6"

type DecodeStatus int

const (
	// NotApplicable means the URL carries no marker and was left alone.
	NotApplicable DecodeStatus = iota
	// Decoded means URL holds the decoded address.
	Decoded
	// Malformed means the marker was present but decoding failed; URL is the input.
	Malformed
)

func (s DecodeStatus) String() string {
	switch s {
	case Decoded:
		return "decoded"
	case Malformed:
		return "malformed"
	default:
		return "not_applicable"
	}
}

type DecodeResult struct {
	URL    string
	Status DecodeStatus
}

// DecodeImageURL undoes the CDN base64 obfuscation. It never fails: when the
// payload can't be decoded the original URL comes back with Status Malformed.
func DecodeImageURL(raw string) DecodeResult {
	if !strings.Contains(raw, ObfuscationMarker) {
		return DecodeResult{URL: raw, Status: NotApplicable}
	}

	segment := raw[strings.LastIndex(raw, "/")+1:]
	segment = strings.TrimSuffix(segment, ".jpg")

	decoded, err := base64.StdEncoding.DecodeString(segment)
	if err != nil || !utf8.Valid(decoded) {
		return DecodeResult{URL: raw, Status: Malformed}
	}

	return DecodeResult{URL: string(decoded), Status: Decoded}
}

// ResolveImageURL returns the decoded URL when decoding succeeds and the
// input otherwise.
func ResolveImageURL(raw *string) *string {
	if raw == nil {
		return nil
	}
	res := DecodeImageURL(*raw)
	return &res.URL
}
