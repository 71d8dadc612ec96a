// Package evidence models the sparse per-stage expected-value records used to
// confirm which operator produced a stage.
//
// An evidence record starts at a byte offset (the seed) into the buffer being
// checked and lists expected RGB triplets. A component below Threshold is a
// direct value; a component at or above Threshold is derived: it stores
// (byte + mask) and must be checked through the mask source.
package evidence

import (
	"errors"
	"fmt"

	"bitrevert/internal/pixel"
)

// Threshold separates direct components (below) from derived ones
// (at or above). A derived value no longer fits in one byte.
const Threshold = 256

var (
	ErrCannotOpen   = errors.New("evidence: cannot open file")
	ErrMalformed    = errors.New("evidence: malformed file")
	ErrNegativeSeed = errors.New("evidence: seed must be non-negative")
)

// Triplet is one expected pixel (R, G, B). Components may exceed 255.
type Triplet [3]int

// Evidence is the record for a single stage.
type Evidence struct {
	Seed     int
	Triplets []Triplet
}

// Validate checks the seed and component signs.
func (e Evidence) Validate() error {
	if e.Seed < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSeed, e.Seed)
	}
	for k, t := range e.Triplets {
		for c, v := range t {
			if v < 0 {
				return fmt.Errorf("%w: triplet %d component %d is %d", ErrMalformed, k, c, v)
			}
		}
	}
	return nil
}

// Len returns the number of triplets.
func (e Evidence) Len() int { return len(e.Triplets) }

// Span returns the number of bytes the triplets cover.
func (e Evidence) Span() int { return len(e.Triplets) * pixel.Channels }

// InRange returns how many triplets fit fully inside a buffer of bufLen
// bytes starting at the seed.
func (e Evidence) InRange(bufLen int) int {
	if e.Seed < 0 || e.Seed >= bufLen {
		return 0
	}
	avail := (bufLen - e.Seed) / pixel.Channels
	if avail < len(e.Triplets) {
		return avail
	}
	return len(e.Triplets)
}

// Pos returns the buffer offset of component c of triplet k.
func (e Evidence) Pos(k, c int) int {
	return e.Seed + k*pixel.Channels + c
}

// Clone returns a deep copy.
func (e Evidence) Clone() Evidence {
	return Evidence{Seed: e.Seed, Triplets: append([]Triplet(nil), e.Triplets...)}
}

// String summarizes the record for diagnostics.
func (e Evidence) String() string {
	if len(e.Triplets) == 0 {
		return fmt.Sprintf("seed=%d triplets=0", e.Seed)
	}
	return fmt.Sprintf("seed=%d triplets=%d first=%v", e.Seed, len(e.Triplets), e.Triplets[0])
}

// IsDerived reports whether v must be checked through the mask source.
func IsDerived(v int) bool { return v >= Threshold }

// Byte returns the byte value carried by v (v mod 256).
func Byte(v int) byte { return byte(v % 256) }

// EncodeDirect records b verbatim.
func EncodeDirect(b byte) int { return int(b) }

// EncodeDerived records b as a derived component against mask byte m. The
// result always sits at or above Threshold.
func EncodeDerived(b, m byte) int {
	return Threshold + int(b+m)
}

// Matches reports whether observed byte b satisfies component v, given the
// mask byte m at the same offset.
func Matches(v int, b, m byte) bool {
	if IsDerived(v) {
		return b+m == Byte(v)
	}
	return b == Byte(v)
}

// FromBuffer samples count triplets of buf starting at seed. When derived is
// true every component is stored in derived form against mask; otherwise the
// bytes are stored directly. Sampling stops at the buffer end.
func FromBuffer(buf, mask []byte, seed, count int, derived bool) Evidence {
	ev := Evidence{Seed: seed}
	for k := 0; k < count; k++ {
		pos := seed + k*pixel.Channels
		if pos+pixel.Channels > len(buf) || (derived && pos+pixel.Channels > len(mask)) {
			break
		}
		var t Triplet
		for c := 0; c < pixel.Channels; c++ {
			if derived {
				t[c] = EncodeDerived(buf[pos+c], mask[pos+c])
			} else {
				t[c] = EncodeDirect(buf[pos+c])
			}
		}
		ev.Triplets = append(ev.Triplets, t)
	}
	return ev
}
