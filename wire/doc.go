// Package wire implements the executor protocol (§4.E): an 8-byte
// little-endian length-prefixed frame carrying a compact, self-delimiting
// tagged-union encoding of Request and Response messages.
//
// The encoding is deliberately hand-rolled over encoding/binary rather
// than a generated protobuf schema — every union tag is a single byte
// followed by its payload, and every variable-length field (strings,
// slices) is length-prefixed with a Uvarint, matching the density of a
// protobuf oneof/repeated field without a codegen step.
package wire
