package service

import "Predictor/internal/domain/models"

// HostBridge is the mini-app host runtime. Calls are fire-and-forget; callers must
// tolerate errors and a missing bridge.
type HostBridge interface {
	Ready() error
	Expand() error
	EnableClosingConfirmation() error
	HapticFeedback(kind models.HapticKind) error
}

// SessionObserver receives a snapshot after every session mutation.
// Implementations must not block.
type SessionObserver interface {
	SessionUpdated(s models.SessionSnapshot)
}
