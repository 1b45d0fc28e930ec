// File: core/port/degradation.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package port

// DegradationAction tells a Sender how to treat a connection it found
// broken while delivering or refreshing it.
type DegradationAction int

const (
	// DegradationIgnore drops the failed delivery/refresh silently and
	// moves on to the next connection.
	DegradationIgnore DegradationAction = iota
	// DegradationWarn behaves like DegradationIgnore but signals to the
	// callback's caller that the event is worth logging; the Sender
	// itself does not log, it only returns this value through the
	// callback's return path.
	DegradationWarn
	// DegradationFail promotes a failed connection build: UpdateConnection
	// returns the build error to its caller instead of skipping the peer.
	// Delivery and receive failures do not consult the returned action: the
	// failed connection is always skipped for that sample, Send reports
	// only the count delivered, and no connection is torn down before
	// FinishUpdateConnectionCycle.
	DegradationFail
)

// DegradationCallback is consulted whenever a Sender fails to deliver to,
// or fails to (re)establish, a connection toward receiverPortUUID on
// serviceUUID. There is no reliable way to distinguish "receiver gone" from
// "receiver momentarily full" in a process-local transport, so the callback
// fires on any delivery or connect failure and decides how much the Sender
// should care.
type DegradationCallback func(serviceUUID, receiverPortUUID string) DegradationAction
