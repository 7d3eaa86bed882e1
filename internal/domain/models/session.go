package models

// View is the screen currently shown to the user. Exactly one is active.
type View string

const (
	ViewForm      View = "form"
	ViewAnalyzing View = "analyzing"
	ViewResult    View = "result"
)

// Session holds the state of a single screen visit.
type Session struct {
	ID           string
	Base         string
	Quote        string
	Timeframe    string
	View         View
	Progress     int
	ErrorMessage string
	Result       *Prediction
	Version      uint64
}

// SessionSnapshot is a read-only copy of a Session handed to observers and the API.
type SessionSnapshot struct {
	ID           string      `json:"id"`
	Version      uint64      `json:"version"`
	Base         string      `json:"base"`
	Quote        string      `json:"quote"`
	Timeframe    string      `json:"timeframe"`
	View         View        `json:"view"`
	Progress     int         `json:"progress"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Result       *Prediction `json:"result,omitempty"`
}

// Snapshot copies the session. Prediction is immutable so the pointer is shared.
func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:           s.ID,
		Version:      s.Version,
		Base:         s.Base,
		Quote:        s.Quote,
		Timeframe:    s.Timeframe,
		View:         s.View,
		Progress:     s.Progress,
		ErrorMessage: s.ErrorMessage,
		Result:       s.Result,
	}
}
