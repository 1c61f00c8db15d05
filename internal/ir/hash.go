package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
const (
	DomainNetwork = "procnet/network/v1"
	DomainPass    = "procnet/pass/v1"
	DomainState   = "procnet/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NetworkHash computes the content hash of a serialized network document.
// Two networks that serialize to the same tree hash identically regardless
// of map iteration order or Unicode normalization form.
func NetworkHash(doc Value) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("NetworkHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNetwork, canonical), nil
}

// PassID identifies an evaluation pass by its token and logical sequence.
func PassID(token string, seq int64) string {
	canonical, _ := MarshalCanonical(Object{
		"token": String(token),
		"seq":   Int(seq),
	})
	return hashWithDomain(DomainPass, canonical)
}

// StateHash hashes a flat map of property paths to values.
// Used by replay to compare reconstructed property state.
func StateHash(state Object) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustNetworkHash is like NetworkHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNetworkHash(doc Value) string {
	h, err := NetworkHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
