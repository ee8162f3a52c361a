// Package protocol defines the closed set of messages exchanged between the
// pairview host and its viewer peers.
//
// # Message Kinds
//
//   - [Ready]: peer -> host, sent once after startup
//   - [LoadDoc]: host -> peer, render a source document and reset highlights
//   - [HighlightField]: host -> peer, draw a highlight rectangle and scroll to it
//   - [Ping] / [Pong]: liveness probe pair
//
// # Wire Format
//
// Every message travels inside a JSON envelope that carries the sender's
// trusted origin:
//
//	{"origin":"http://127.0.0.1:7420","kind":"HIGHLIGHT_FIELD","body":{"base":"inv-01","bbox":[0.1,0.2,0.4,0.5]}}
//
// Recipients open frames through a [Gate]. A frame whose origin differs from
// the gate's origin, whose JSON is malformed, or whose kind is unknown is
// discarded without error. Origin equality is the only authentication.
package protocol
