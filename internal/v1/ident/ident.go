// Package ident generates the identifiers used across the whiteboard
// protocol: RFC 4122 v4 UUIDs for user memberships and 8-hex short IDs for
// strokes and rooms.
package ident

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

const shortIDBytes = 4 // 8 hex chars

// NewUserID returns a "user-" prefixed UUID v4.
func NewUserID() string {
	return "user-" + uuid.NewString()
}

// NewStrokeID returns a "stroke-" prefixed 8-hex short ID.
func NewStrokeID() string {
	return "stroke-" + shortID()
}

// NewRoomID returns a "room-" prefixed 8-hex short ID.
func NewRoomID() string {
	return "room-" + shortID()
}

func shortID() string {
	var b [shortIDBytes]byte
	// rand.Read on crypto/rand never fails on supported platforms; it
	// panics internally if the kernel source is unavailable.
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// IsValidUUID reports whether s is a canonical 36-char RFC 4122 v4 UUID:
// dashes at positions 8/13/18/23, version nibble '4', variant nibble in
// {8,9,a,b}, hex everywhere else.
func IsValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i := 0; i < 36; i++ {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		case 14:
			if c != '4' {
				return false
			}
		case 19:
			switch c {
			case '8', '9', 'a', 'b', 'A', 'B':
			default:
				return false
			}
		default:
			if !isHex(c) {
				return false
			}
		}
	}
	// Backstop: the library parser agrees.
	_, err := uuid.Parse(s)
	return err == nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
