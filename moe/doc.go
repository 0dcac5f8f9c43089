// Package moe provides the hybrid NPU/PIM cost model for mixture-of-experts layers.
//
// # Reading Guide
//
//   - expert.go: ExpertID, per-device timing records, activation overheads
//   - partition.go: Evaluate, the cost of one NPU/PIM boundary
//   - search.go: Search and SearchParallel, the exhaustive boundary sweep
//
// # Cost Model
//
// Experts are ranked by an external priority order (typically routed token
// count, highest first). A boundary H sends the first H experts to the NPU and
// the rest to PIM. Both devices start together, so a layer pass completes at
//
//	max(sum(NPU TotalWithLoad), activation_movement_1 + sum(PIM Total) + activation_movement_2)
//
// The activation movements are paid by the PIM path once per pass regardless of
// how many experts it runs, including when it runs none.
//
// An expert with no record on a device costs 0 cycles there. This keeps sweeps
// running on partially instrumented traces, but it also hides missing data:
// use MissingRecords to find the gaps.
//
// Sub-packages:
//   - moe/timing: simulator trace, stats file, and results table parsers
//   - moe/report: fixed-layout text reports and the JSON summary
package moe
