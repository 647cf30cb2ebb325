// Package ir provides the intermediate representation operated on by the
// optimization backend: named storage locations (locals) with a use-def
// registry, a closed instruction catalog for a dual-pipeline SIMD QPU,
// basic blocks with mutation-safe instruction cursors, and the hardware
// register table with its fixed-latency hazard groups.
//
// All reordering decisions made by the optimizer rest on the use-def
// registry staying consistent with the instruction stream. Instructions
// register their operand locals when constructed; every structural edit
// (replace, insert, erase) goes through a Walker, which keeps the registry
// paired with the mutation.
package ir
