// Package serverrun boots the leasedkeyq server: runtime, service layer,
// and HTTP transport, tied to a signal-aware context.
package serverrun
