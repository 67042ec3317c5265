// internal/urlkey/probe.go
//
// Sequential collision probing.
//
// Context
// -------
// Url keys and category request paths share one numbering scheme: the bare
// candidate is the zero-th form, then "-1", "-2", … are probed in order
// until a free value turns up.  While probing, each taken value is filed as
// *matching* (held by the same entity) or *not matching*.
//
//   - Any matching value found → reuse the highest matching counter.  A
//     re-import therefore keeps the key it was given last time.
//   - Otherwise               → claim highest not-matching counter + 1.
//
// Matching ownership always wins, even when a lower free slot exists.
//
// Notes
// -----
//   - One lookup per counter, no locking.  Two workers racing on the same
//     base value can both see it free; the unique index on the target table
//     is the backstop.
//   - Oxford commas, two spaces after periods.
package urlkey

import (
	"context"
	"fmt"
	"strconv"
)

// DefaultMaxProbes bounds the probe loop.
const DefaultMaxProbes = 1000

// Lookup reports the owner of value, or found=false when value is free.
type Lookup func(ctx context.Context, value string) (ownerID int64, found bool, err error)

// Format renders the probe value for counter.  Counter 0 must render the
// bare candidate.
type Format func(candidate string, counter int) string

// Suffix is the default Format: "key", "key-1", "key-2", ….
func Suffix(candidate string, counter int) string {
	if counter == 0 {
		return candidate
	}
	return candidate + "-" + strconv.Itoa(counter)
}

// Outcome describes one probe run.
type Outcome struct {
	Value      string
	Counter    int
	Collisions int  // taken values seen before settling
	Reused     bool // value already belonged to the entity
}

// Probe runs the numbering scheme for entityID.
func Probe(ctx context.Context, entityID int64, candidate string, maxProbes int, format Format, lookup Lookup) (Outcome, error) {
	if format == nil {
		format = Suffix
	}
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}

	var (
		matching    = -1
		notMatching = -1
		counter     = 0
		collisions  = 0
	)
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		owner, found, err := lookup(ctx, format(candidate, counter))
		if err != nil {
			return Outcome{}, err
		}
		if !found {
			break
		}
		collisions++
		if owner == entityID {
			matching = max(matching, counter)
		} else {
			notMatching = max(notMatching, counter)
		}
		counter++
		if counter >= maxProbes {
			return Outcome{}, fmt.Errorf("%q after %d probes: %w", candidate, counter, ErrCollisionResolutionExhausted)
		}
	}

	switch {
	case matching >= 0:
		return Outcome{Value: format(candidate, matching), Counter: matching, Collisions: collisions, Reused: true}, nil
	case notMatching >= 0:
		c := notMatching + 1
		return Outcome{Value: format(candidate, c), Counter: c, Collisions: collisions}, nil
	default:
		return Outcome{Value: format(candidate, 0)}, nil
	}
}
