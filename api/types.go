// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// ConnectionState enumerates the presence state-machine of a ZeroCopyConnection
// as observed by either peer: which side(s) currently hold their "present" bit.
type ConnectionState int

const (
	ConnectionAbsent ConnectionState = iota
	ConnectionSenderOnly
	ConnectionReceiverOnly
	ConnectionBoth
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionSenderOnly:
		return "sender-only"
	case ConnectionReceiverOnly:
		return "receiver-only"
	case ConnectionBoth:
		return "both"
	default:
		return "absent"
	}
}

// MessagingPattern identifies the communication pattern a service was opened
// under. Request-response and event patterns are external collaborators that
// reuse this core's ZeroCopyConnection and CommunicationChannel transport.
type MessagingPattern int

const (
	PatternPublishSubscribe MessagingPattern = iota
	PatternEvent
	PatternRequestResponse
	PatternBlackboard
)

func (p MessagingPattern) String() string {
	switch p {
	case PatternEvent:
		return "event"
	case PatternRequestResponse:
		return "request-response"
	case PatternBlackboard:
		return "blackboard"
	default:
		return "publish-subscribe"
	}
}

// UnableToDeliverStrategy selects what a Sender does when a connection
// cannot accept a sample without exceeding its configured limits.
type UnableToDeliverStrategy int

const (
	// StrategyBlock waits (bounded by adaptive backoff) until room is available.
	StrategyBlock UnableToDeliverStrategy = iota
	// StrategyDiscardSample drops the sample for that one connection and continues.
	StrategyDiscardSample
)

func (s UnableToDeliverStrategy) String() string {
	if s == StrategyBlock {
		return "block"
	}
	return "discard-sample"
}

// ServiceInfo exposes descriptive identity/runtime info for external tools
// (node listings, diagnostics) without exposing internal storage handles.
type ServiceInfo struct {
	Name      string
	UUID      string
	Pattern   MessagingPattern
	StartedAt time.Time
}

// PortStats summarizes per-port counters surfaced through the Control/Debug API.
type PortStats struct {
	SamplesLoaned    int64
	SamplesSent      int64
	SamplesReceived  int64
	SamplesReclaimed int64
	ConnectionsLive  int
}
