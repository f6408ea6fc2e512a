package walstore

// sequenceKey identifies one (session, revision) counter space.
type sequenceKey struct {
	sessionID string
	revision  int
}

// sequenceGenerator is an in-memory, per-(session,revision) monotonic
// counter. It is rehydrated from persisted max(seq) on open/ensure and
// lives entirely behind the store's mutation lock — callers never
// touch it directly without holding that lock.
type sequenceGenerator struct {
	counters map[sequenceKey]int
}

func newSequenceGenerator() *sequenceGenerator {
	return &sequenceGenerator{counters: make(map[sequenceKey]int)}
}

// initialize seeds the counter for (session, revision) at maxSeq, so
// the next call to next returns maxSeq+1.
func (g *sequenceGenerator) initialize(sessionID string, revision int, maxSeq int) {
	g.counters[sequenceKey{sessionID, revision}] = maxSeq
}

// next returns prev+1 and advances the counter. Callers must hold the
// store's write lock.
func (g *sequenceGenerator) next(sessionID string, revision int) int {
	key := sequenceKey{sessionID, revision}
	v := g.counters[key] + 1
	g.counters[key] = v
	return v
}

// current returns the counter's present value without advancing it.
func (g *sequenceGenerator) current(sessionID string, revision int) int {
	return g.counters[sequenceKey{sessionID, revision}]
}

// reset initializes newRevision's counter at 0, so the first next call
// under that revision returns 1. The old revision's counter is left in
// place (harmless: its key is never looked up again under the old
// revision number once the session has moved on, and old-revision
// events remain queryable unmodified).
func (g *sequenceGenerator) reset(sessionID string, newRevision int) {
	g.counters[sequenceKey{sessionID, newRevision}] = 0
}
