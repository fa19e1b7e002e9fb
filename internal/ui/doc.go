// Package ui implements an interactive terminal dashboard using bubbletea's Elm architecture.
//
// The dashboard walks a discovery session from prompt to result:
//  1. [QueryView] : Enter or confirm the search query
//  2. [RunView] : Watch live counters and the progress event feed
//  3. [ResultView] : Review the session summary
//  4. [ArtistListView] : Browse artists stored during the run
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress events arrive over a progress.Subscription channel; each received event
// re-arms the wait command, so a quiet stream never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, c, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
