// Package peer owns the viewer peers the host spawns: which peer serves
// which document type, which peers still owe a handshake, and how
// highlight commands reach them.
//
// # Lifecycle
//
// Each document type has at most one tracked [Handle]. A handle moves
// through Spawning, Ready and Live, and is marked Closed lazily the next
// time [Registry.LivePeer] finds its process gone:
//
//	NO_PEER -> Spawning -> Ready -> Live -> Closed
//
// [Registry.OpenOrAttach] spawns a peer (or reuses the tracked one) and
// records a pending registration under the peer's name. When that peer
// sends READY over the channel, [Registry.Receive] resolves the pending
// entry by delivering LOAD_DOC, then forgets it.
//
// # Highlights
//
// [Registry.Highlight] is best effort with a single deferred retry. When
// no live peer exists it opens one and schedules exactly one more attempt
// after the configured delay; if that attempt also fails the highlight is
// dropped and a highlight.dropped event is published.
//
// # Spawners
//
// [ExecSpawner] runs the viewer as a child process. [TmuxSpawner] runs it
// in a detached tmux session the user can switch to.
package peer
