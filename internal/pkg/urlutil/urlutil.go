// Package urlutil canonicalizes source URLs so equivalent links map to the
// same content hash, and therefore the same staged object.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Normalize strips query and fragment, lowercases the host and trims a
// trailing path slash. Scheme must be http or https.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// Hash is the content hash: hex sha256 of the normalized URL.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// BaseURL reduces a presigned URL to scheme+host+path, dropping the signed
// query. Two presignings of the same object share one base URL.
func BaseURL(presigned string) (string, error) {
	u, err := url.Parse(presigned)
	if err != nil {
		return "", fmt.Errorf("parse presigned url: %w", err)
	}
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path), nil
}

// Domain returns the lowercased host of the URL.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
