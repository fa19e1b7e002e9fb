// Package models defines the domain entities for the scout discovery pipeline.
//
// The package contains three categories of types:
//
// 1. Session types: the immutable [SessionRequest], the [Session] snapshot
// with its [SessionState] machine, and the [SessionSummary] carried by the
// final progress event.
//
// 2. Pipeline values: [CandidateVideo] produced by the harvester,
// [SocialLinks] mined from descriptions and channel pages, [ArtistProfile]
// mutated during enrichment and frozen before scoring, and [LyricAnalysis]
// produced by the analyzer.
//
// 3. Progress events: the [ProgressEvent] stream published on a session's
// bus, one [EventKind] per variant.
//
// Artist identity is a fingerprint: the first available strong identifier in
// priority order (youtube channel, spotify id, instagram handle, tiktok
// handle), falling back to the normalized name. Two profiles with equal
// fingerprints are the same artist.
package models
