package workflow

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// initRNG derives a deterministic *rand.Rand from a workflow run id, so
// retry jitter (and any other scheduler randomness) replays identically
// across re-runs of the same run id. Grounded on langgraph-go's
// engine.initRNG.
func initRNG(runID string) *rand.Rand {
	h := sha256.New()
	h.Write([]byte(runID))
	sum := h.Sum(nil)
	seed := int64(binary.BigEndian.Uint64(sum[:8])) // #nosec G115 -- deterministic seeding, not security sensitive
	return rand.New(rand.NewSource(seed))           // #nosec G404 -- deterministic RNG for replay, not security
}
