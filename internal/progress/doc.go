// Package progress implements the per-session fan-out bus for pipeline
// events.
//
// One [Bus] exists per discovery session. Stages publish [models.ProgressEvent]
// values; subscribers receive them over buffered channels. Publishing never
// blocks: a subscriber whose buffer overflows is dropped and handed a final
// lagged event so it can tell silence from loss. Subscribers receive only
// events published after they subscribe; there is no backlog replay.
package progress
