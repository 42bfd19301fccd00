// Package signing builds and verifies the expiring capability URLs that
// authorize unauthenticated downloads.
//
// Exactly one canonical scheme is used, everywhere:
//
//	payload = "/blob/filesystem/" + objectID + "?validUntil=" + queryEscape(RFC3339(validUntil, UTC))
//	sig     = hex(HMAC-SHA256(bucketKey, payload))
//	cs      = hex(SHA256(payload))
//
// The payload is byte-for-byte the path and query the client transmits,
// with validUntil escaped and sig/cs excluded. Any drift between issuing
// and verifying (timestamp encoding, parameter order, which key is used)
// rejects legitimate links, so both sides go through ContentURL.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"
)

const ContentPathPrefix = "/blob/filesystem/"

var (
	ErrBadSignature = errors.New("bad signature")
	ErrExpired      = errors.New("link expired")
	ErrMalformed    = errors.New("malformed validUntil")
)

// ContentURL returns the canonical expiring URL path for an object. This is
// the exact string that gets signed.
func ContentURL(objectID string, validUntil time.Time) string {
	return ContentPathPrefix + objectID + "?validUntil=" + url.QueryEscape(validUntil.UTC().Format(time.RFC3339))
}

// Sign returns the hex HMAC-SHA256 signature for an object link, keyed by
// the owning bucket's secret.
func Sign(key []byte, objectID string, validUntil time.Time) string {
	return hmacHex(key, ContentURL(objectID, validUntil))
}

// SignedURL returns the full signed content URL path.
func SignedURL(key []byte, objectID string, validUntil time.Time) string {
	return ContentURL(objectID, validUntil) + "&sig=" + Sign(key, objectID, validUntil)
}

// Checksum returns the unkeyed content checksum carried by getLink URLs as
// the cs parameter.
func Checksum(objectID string, validUntil time.Time) string {
	sum := sha256.Sum256([]byte(ContentURL(objectID, validUntil)))
	return hex.EncodeToString(sum[:])
}

// Verify checks a transmitted (validUntil, sig) pair against the bucket
// key. The signature must match both the payload reconstructed from the
// transmitted parameter value and the payload recomputed from the parsed,
// authoritative timestamp: a pair that is self-consistent but does not
// correspond to the canonical encoding is rejected. Comparison is
// constant-time. Expiry is checked separately via CheckTemporalValidity.
func Verify(key []byte, objectID, validUntilParam, sig string) (time.Time, error) {
	validUntil, err := time.Parse(time.RFC3339, validUntilParam)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	transmitted := ContentPathPrefix + objectID + "?validUntil=" + url.QueryEscape(validUntilParam)
	if !hmac.Equal([]byte(sig), []byte(hmacHex(key, transmitted))) {
		return time.Time{}, ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(Sign(key, objectID, validUntil))) {
		return time.Time{}, ErrBadSignature
	}
	return validUntil, nil
}

// CheckTemporalValidity reports expiry with an inclusive boundary: a link
// is still valid at exactly validUntil.
func CheckTemporalValidity(now, validUntil time.Time) error {
	if now.After(validUntil) {
		return ErrExpired
	}
	return nil
}

func hmacHex(key []byte, payload string) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(payload))
	return hex.EncodeToString(m.Sum(nil))
}
