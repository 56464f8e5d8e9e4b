package cache

import (
	"fmt"
	"strings"
)

// Mode governs when a cached response may satisfy a request without a
// network round trip.
type Mode string

const (
	// ModeDefault serves fresh entries, revalidates stale ones and stores
	// every cacheable response.
	ModeDefault Mode = "default"

	// ModeNoStore bypasses the cache entirely.
	ModeNoStore Mode = "no-store"

	// ModeReload always goes to the network and stores the response.
	ModeReload Mode = "reload"

	// ModeNoCache always revalidates with the server, using a conditional
	// request when the entry has a validator.
	ModeNoCache Mode = "no-cache"

	// ModeForceCache serves any stored entry regardless of staleness and
	// only goes to the network on a miss.
	ModeForceCache Mode = "force-cache"
)

// ParseMode converts a configuration string to a Mode.
// The empty string selects ModeDefault.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeDefault, nil
	case ModeDefault, ModeNoStore, ModeReload, ModeNoCache, ModeForceCache:
		return m, nil
	default:
		return "", fmt.Errorf("unknown cache mode %q", s)
	}
}

// Reads reports whether the mode consults stored entries.
func (m Mode) Reads() bool {
	return m != ModeNoStore && m != ModeReload
}

// Writes reports whether the mode stores responses.
func (m Mode) Writes() bool {
	return m != ModeNoStore
}

// Serves reports whether entry can be returned without contacting the server.
func (m Mode) Serves(entry *CacheEntry) bool {
	if entry == nil || !m.Reads() {
		return false
	}
	switch m {
	case ModeForceCache:
		return true
	case ModeNoCache:
		return false
	default:
		return !entry.IsExpired()
	}
}
