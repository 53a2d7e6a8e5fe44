// Package idgen generates the identifiers the companion stamps on tabs,
// chord invocations and ledger rows.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// Short returns a Generator of base-36 IDs of the given length, used for
// session handles shown in logs.
func Short(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of time-sortable RFC 9562 v7 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID from gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

var (
	// Invocation tags one chord-triggered summary run.
	Invocation = Prefixed("sum_", UUIDv7())
	// Session tags one attached browser tab.
	Session = Prefixed("tab_", Short(8))
)

// New returns a bare UUIDv7.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
