// Package session owns the outbound half of one client connection.
//
// Ownership boundary:
// - write requests (protocol header, pre-encoded frames)
// - the ordered write queue shared by producers and the writer
// - the single writer goroutine and its failure signal
// - session config and retry backoff primitives
//
// Producers call Connection.Send/Enqueue from any goroutine. Exactly one writer
// goroutine per Connection touches the socket for output, so wire order equals
// enqueue order and the protocol header is always first. A socket write error
// stops the writer, discards whatever is still queued, and invokes the
// connection's WriteErrorFunc once.
package session
