package syncer

import "time"

// Source identifies what triggered a state application.
type Source string

const (
	SourceStartup Source = "startup"
	SourceLocal   Source = "local"
	SourceReload  Source = "reload"
)

// ChangeEvent is the local-change notification the gate governs. It fires
// whenever a theme is applied in this process, including during reloads;
// the gate decides whether it reaches the save path.
type ChangeEvent struct {
	Theme string
	At    time.Time
}

// StateEvent is published for observers on every applied state.
type StateEvent struct {
	Theme  string
	Source Source
	At     time.Time
}
