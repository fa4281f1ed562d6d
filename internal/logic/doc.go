// Package logic implements the temporal stream logic formula core: an
// immutable formula tree over updatable cells, structural Boolean
// simplification, and one-step temporal unfolding against a finite
// observation history.
//
// Formulas are a closed sum type generic over the cell identifier type C.
// They carry no mutable state and are compared through their canonical
// String rendering, never with ==. Unfold consumes a newest-first history
// of observations and rewrites a formula by exactly one temporal step;
// repeated unfolding against a growing history is how callers advance time.
// A call-local cache threads memoized rewrites along one recursive descent
// and is discarded between independent history suffixes, so it can only
// ever change performance, not results.
package logic
