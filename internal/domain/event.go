package domain

import "time"

// EventKind identifies a UI-boundary event produced by a session.
type EventKind string

const (
	EventResolutionPending EventKind = "resolution.pending"
	EventRecordResolved    EventKind = "record.resolved"
	EventRecordCleared     EventKind = "record.cleared"
	EventSearchResults     EventKind = "search.results"
	EventMapCenter         EventKind = "map.center"
	EventExportCompleted   EventKind = "export.completed"
	EventExportFailed      EventKind = "export.failed"
)

// Event is published on a session's bus and forwarded to external sinks.
type Event struct {
	Kind       EventKind          `json:"kind"`
	Session    string             `json:"session,omitempty"`
	Generation uint64             `json:"generation,omitempty"`
	Coordinate *Coordinate        `json:"coordinate,omitempty"`
	Zoom       int                `json:"zoom,omitempty"`
	Record     *CadastralRecord   `json:"record,omitempty"`
	Candidates []AddressCandidate `json:"candidates,omitempty"`
	Query      string             `json:"query,omitempty"`
	Filename   string             `json:"filename,omitempty"`
	Error      string             `json:"error,omitempty"`
	At         time.Time          `json:"at"`
}
