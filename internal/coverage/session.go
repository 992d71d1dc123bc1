// Package coverage records code coverage around a test run and renders the
// results as HTML pages and Cobertura XML.
package coverage

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when rendering a session that recorded nothing
	ErrNoData = errors.New("no coverage data was recorded")
	// ErrActive is returned when an operation needs a stopped session
	ErrActive = errors.New("coverage session is still recording")
)

// Session is the contract of a coverage-recording service. Start and Stop
// bracket the measured work; Persist saves what was recorded; the Render methods
// work on a stopped session and may fail, e.g. with ErrNoData.
type Session interface {
	Configure(sources []string, omit []string) error
	Start() error
	Stop() error
	Persist() error
	RenderHTML(dir string) (float64, error)
	RenderXML(path string) error
}

// Record starts s, runs fn and then always stops and persists s, including when
// fn returns an error or panics. Errors from fn, Stop and Persist are joined.
func Record(s Session, fn func() error) (err error) {
	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start coverage: %w", err)
	}

	defer func() {
		var stopErr, persistErr error
		if e := s.Stop(); e != nil {
			stopErr = fmt.Errorf("failed to stop coverage: %w", e)
		}
		if e := s.Persist(); e != nil {
			persistErr = fmt.Errorf("failed to save coverage: %w", e)
		}
		err = errors.Join(err, stopErr, persistErr)
	}()

	return fn()
}
