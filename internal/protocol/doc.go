// Package protocol owns wire constants and the connection preamble.
//
// Ownership boundary:
// - protocol id and version triple
// - frame type and frame-end constants
// - protocol header (handshake) encode/parse
package protocol
