// Package session maps opaque browser-held identifiers to server-side
// OAuth state: the pending authorization attempts awaiting a provider
// callback and the credentials issued once a flow completes.
//
// Nothing but the identifier ever travels to the browser; tokens,
// verifiers and launch context live only in a Store. Two stores are
// provided: a process-local MemoryStore for single-replica deployments
// and a RedisStore for anything horizontally scaled.
//
// The Manager ties a Store to the signed cookie (or, for embedded
// development launches, the shared identity) that names a visitor's
// record.
package session
