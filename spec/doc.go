// Package spec models the WASI preview1 value-type system WASIT drives:
// the closed set of Type kinds (§3), their layout rules, and the fixed
// catalog of 46 preview1 functions by stable ordinal.
//
// Type is a closed tagged union. Every switch over Type.Kind() must be
// exhaustive; new cases are never added without updating every switch
// site (gen, wire, executor).
package spec
