// Package program synthesizes a sequence of executor requests (§4.D):
// at each step it chooses a runnable WASI preview1 function, binds its
// consume-resource parameters to live resources, delegates fresh-value
// generation to package gen, and gives each produce-resource result a
// fresh id. The synthesizer does not add those results to the resource
// store; later steps bind only resources already in the store.
package program
