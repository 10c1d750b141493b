// Package v6 is a compatibility shim for the draft-6 V-PCC bitstream
// layout (PSPS/PFPS/PTGLU naming, container magic 23021981), as produced by
// the Nokia TMC2-derived reference encoder before the PDG unit types were
// renamed to ASPS/AFPS/ATGL for the current container format parsed by
// package vpcc.
//
// Draft-6 containers carry exactly five top-level units in a fixed order
// (SPS, PDG, OVD, GVD, AVD) with no outer sample-stream framing, unlike the
// repeating VPS-delimited frame groups vpcc.Parser handles. This package
// narrows its scope to the subset of draft-6 actually exercised by archived
// fixtures: single-tile I-type patch frames with at most one attribute
// stream. P-type tile groups, inter/PCM patches, point local
// reconstruction, 45-degree projection, and multi-tile-group layouts are
// all rejected rather than silently misdecoded.
package v6
