// Package runtime wires configuration and the queue registry for a
// single-node leasedkeyq instance.
package runtime
