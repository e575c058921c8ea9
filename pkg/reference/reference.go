package reference

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	minLength = 3
	maxLength = 80
)

// Provider identifies the payment provider a receipt link belongs to
type Provider string

const (
	ProviderTelebirr Provider = "telebirr"
	ProviderCBE      Provider = "cbe"
)

// ParsedLink holds the fields extracted from a provider receipt link.
// Amount and Date are only set when the link carries them.
type ParsedLink struct {
	Provider  Provider
	Reference string
	Amount    *float64
	Date      *time.Time
}

var (
	// ErrEmptyReference is returned when normalization leaves nothing usable
	ErrEmptyReference = errors.New("reference is empty after normalization")
	// ErrUnknownProvider is returned for links whose host is not recognized
	ErrUnknownProvider = errors.New("receipt link host is not a known provider")
)

// Normalize canonicalizes a payment reference token: surrounding whitespace
// is dropped, letters are uppercased and every character outside
// [A-Z0-9_-] is removed. The result must land in [3, 80] characters.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if len(normalized) < minLength {
		return "", ErrEmptyReference
	}
	if len(normalized) > maxLength {
		normalized = normalized[:maxLength]
	}
	return normalized, nil
}

// Mint generates a reference for sales that have no external one, such as
// over-the-counter cash. The random suffix keeps concurrent mints from
// colliding; the unique constraint on receipts stays the final authority.
func Mint(prefix string) (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reference: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"),
		strings.ToUpper(hex.EncodeToString(buf))), nil
}

// ParseLink extracts provider, reference and any amount/date a receipt link
// carries. Telebirr links put the reference in the last path segment, CBE
// links in the id query parameter with the payer's account suffix appended
// after an ampersand or at a fixed tail.
func ParseLink(link string) (*ParsedLink, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, err
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "transactioninfo.ethiotelecom.et"):
		return parseTelebirr(u)
	case strings.HasSuffix(host, "apps.cbe.com.et"):
		return parseCBE(u)
	}
	return nil, ErrUnknownProvider
}

func parseTelebirr(u *url.URL) (*ParsedLink, error) {
	// https://transactioninfo.ethiotelecom.et/receipt/<REF>
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	raw := segments[len(segments)-1]
	if q := u.Query().Get("receipt"); q != "" {
		raw = q
	}

	ref, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedLink{Provider: ProviderTelebirr, Reference: ref}
	attachQueryFields(parsed, u)
	return parsed, nil
}

func parseCBE(u *url.URL) (*ParsedLink, error) {
	// https://apps.cbe.com.et:100/?id=<REF><ACCT8> where the last 8 digits
	// are the payer's account suffix, not part of the reference.
	raw := u.Query().Get("id")
	if raw == "" {
		return nil, ErrEmptyReference
	}
	if len(raw) > 8 {
		raw = raw[:len(raw)-8]
	}

	ref, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedLink{Provider: ProviderCBE, Reference: ref}
	attachQueryFields(parsed, u)
	return parsed, nil
}

// attachQueryFields picks up optional amount and date parameters some
// provider links carry.
func attachQueryFields(parsed *ParsedLink, u *url.URL) {
	if v := u.Query().Get("amount"); v != "" {
		if amount, err := strconv.ParseFloat(v, 64); err == nil && amount > 0 {
			parsed.Amount = &amount
		}
	}
	if v := u.Query().Get("date"); v != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				parsed.Date = &t
				break
			}
		}
	}
}
