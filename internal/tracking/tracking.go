// Package tracking produces the human-facing tracking labels attached to
// parcels once they are paid for.
package tracking

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
	"time"
)

// Prefix is the brand prefix every tracking id starts with.
const Prefix = "PRCL"

// Generator builds tracking ids of the form PRCL-YYYYMMDD-XXXXXX.  The
// date is taken in UTC and the suffix is three random bytes rendered as
// upper-case hex.  Ids are labels, not keys: two parcels paid on the same
// day may collide with probability about 1 in 16 million.
type Generator struct {
	Now  func() time.Time
	Rand io.Reader
}

// New returns a Generator backed by the wall clock and crypto/rand.
func New() *Generator {
	return &Generator{Now: time.Now, Rand: rand.Reader}
}

// Next returns a fresh tracking id.  A failing random source is treated
// as unrecoverable, the same way crypto/rand itself treats it.
func (g *Generator) Next() string {
	var buf [3]byte
	if _, err := io.ReadFull(g.Rand, buf[:]); err != nil {
		panic("tracking: read random bytes: " + err.Error())
	}
	date := g.Now().UTC().Format("20060102")
	return Prefix + "-" + date + "-" + strings.ToUpper(hex.EncodeToString(buf[:]))
}

var defaultGenerator = New()

// Generate returns a tracking id using the default generator.
func Generate() string { return defaultGenerator.Next() }
