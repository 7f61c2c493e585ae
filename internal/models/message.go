package models

// SignalType represents the type of server-originated signaling message
type SignalType string

const (
	SignalTypeIDAssigned SignalType = "id-assigned"
)

const (
	ErrTargetNotFound = "Target peer not found"
	ErrTargetNotReady = "Target peer not ready"
)

// IDAssignedMessage is pushed once on every new channel before anything else
type IDAssignedMessage struct {
	Type   SignalType `json:"type"`
	UserID string     `json:"userID"`
}

// RelayError tells a sender its envelope could not be delivered
type RelayError struct {
	Error    string `json:"error"`
	TargetID string `json:"targetId"`
}

// PeerStatus is the presence answer for a peer id
type PeerStatus struct {
	PeerID string `json:"peerId"`
	Online bool   `json:"online"`
}
