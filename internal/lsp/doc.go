// Package lsp implements the client side of the Language Server Protocol
// over child-process stdio.
//
// A Client owns one server process and multiplexes requests, responses,
// server-initiated requests, and notifications over the framed JSON-RPC
// transport. Request ids are allocated monotonically; each request installs
// a single-use response slot that is resolved exactly once, by the matching
// response, a timeout, or transport teardown.
//
// The package also carries the protocol types the daemon consumes (document
// sync, workspace edits, symbols, call and type hierarchy), the static
// client capabilities advertised at initialize, URI/path conversion, and
// language-id inference from file names.
//
// Readiness is tracked from the notification stream: $/progress tokens,
// plus the server-specific signals some servers use instead (rust-analyzer's
// experimental/serverStatus quiescence, jdtls's language/status
// ServiceReady). WaitForIndexing and WaitForServiceReady poll those flags
// and are deliberately best-effort; callers proceed on timeout.
package lsp
