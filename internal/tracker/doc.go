// Package tracker keeps persistent identities for the people one camera sees
// inside its queue segment.
//
// Each frame's raw detections are fused (nearby duplicates collapse into one
// person), matched against predicted positions of the existing identities with
// a greedy nearest-first heuristic, and unmatched identities age out after a
// configurable number of frames. OrderedInZone projects the surviving
// identities onto the queue direction to produce the in-segment order.
//
// Matching is intentionally greedy: the globally cheapest pair is taken first
// and its row and column are struck out. An optimal assignment (Hungarian)
// could replace it without changing the public contract.
package tracker
