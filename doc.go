// Package kernelcache implements a [Cache] of kernel matrix rows
// for decomposition solvers (SMO) that request rows on demand.
//
// Rows are keyed by the original index of a training sample and
// hold the kernel values K(key, 0), K(key, 1), … up to the row's
// cached length. Lengths vary over a training run as the solver's
// active set shrinks and grows, so rows grow in place and keep
// the prefix they already hold.
//
// Glossary and invariants:
//
//   - Budget
//
//     The total number of elements that resident rows may hold,
//     derived from a byte budget at construction.
//     Between calls, the summed length of resident rows never exceeds it.
//
//   - Recency ring
//
//     A circular list of resident rows. The tail (lru) is the
//     most recently fetched row; the element after the tail is
//     the least recently fetched and is evicted first.
//
//   - Valid length
//
//     The prefix of a fetched row that already holds kernel values.
//     The caller computes the remainder and writes it into the row.
//
// Operations:
//
//   - Fetch
//
//     Hit: a resident row at least as long as the request is
//     returned unchanged.
//
//     Grow: a shorter resident row is detached from the ring,
//     other rows are evicted until the extra elements fit,
//     and the row is extended with its prefix preserved.
//
//     Miss: rows are evicted until the request fits, then a new
//     row is allocated with nothing valid.
//
//     Overflow: a request longer than the whole budget is served
//     from scratch space and not retained.
//
//   - Swap
//
//     Exchanges the keys of two rows without touching their data,
//     for callers that renumber samples.
package kernelcache
