// Package keys builds and parses the composite key strings used by the
// single-table layout. Every entity is addressed by strings of the form
// "TAG#part[#part...]", e.g. "USER#42" or "TXN#2026-08-01#abc".
//
// Encoding is injective as long as callers respect the contract: the tag
// and every part must be non-empty and must not contain the separator.
package keys

import (
	"fmt"
	"strings"
)

// Separator joins the tag and identifier parts of a key string.
const Separator = "#"

// Key is a composite primary key pair.
type Key struct {
	Partition string
	Sort      string
}

// Encode returns "tag#part[#part...]". It rejects empty tags, empty
// parts, and parts containing the separator, since any of those would
// make two distinct identifiers collide.
func Encode(tag string, parts ...string) (string, error) {
	if tag == "" {
		return "", fmt.Errorf("keys: empty tag")
	}
	if strings.Contains(tag, Separator) {
		return "", fmt.Errorf("keys: tag %q contains separator", tag)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("keys: no identifier parts for tag %q", tag)
	}
	for i, p := range parts {
		if p == "" {
			return "", fmt.Errorf("keys: empty identifier part %d for tag %q", i, tag)
		}
		if strings.Contains(p, Separator) {
			return "", fmt.Errorf("keys: identifier part %q contains separator", p)
		}
	}
	return tag + Separator + strings.Join(parts, Separator), nil
}

// MustEncode is Encode for identifiers that are known-valid (generated
// UUIDs, validated dates). A malformed identifier is a programmer error,
// so it panics instead of returning an error.
func MustEncode(tag string, parts ...string) string {
	k, err := Encode(tag, parts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Decode splits a key string produced by Encode back into its tag and
// identifier parts.
func Decode(key string) (tag string, parts []string, err error) {
	segs := strings.Split(key, Separator)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("keys: %q is not a composite key", key)
	}
	for _, s := range segs {
		if s == "" {
			return "", nil, fmt.Errorf("keys: %q has an empty segment", key)
		}
	}
	return segs[0], segs[1:], nil
}

// Build returns the canonical key pair for a standalone entity instance:
// partition and sort key are both "entityType#id". Entities that live
// inside another entity's partition build their keys with Encode
// directly.
func Build(entityType, id string) (Key, error) {
	k, err := Encode(entityType, id)
	if err != nil {
		return Key{}, err
	}
	return Key{Partition: k, Sort: k}, nil
}
