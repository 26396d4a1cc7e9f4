package metadata

import (
	"context"
	"errors"
	"fmt"
)

// Artist is the credited performer of a candidate.
type Artist struct {
	Name string
}

// Release is an album or edition a candidate appears on.
type Release struct {
	Title string
	// Types holds type identifiers such as
	// "http://musicbrainz.org/ns/mmd-2.0#Album". Only the first is displayed.
	Types []string
	// TracksOffset is the zero-based position of the track on the release.
	TracksOffset int
}

// Candidate is one scored match returned for a search query.
type Candidate struct {
	Score    int // 0-100
	Artist   Artist
	Title    string
	Releases []Release
}

// Provider is the interface remote metadata services must implement.
// Search takes a field query as produced by BuildQuery.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// ServiceError reports that a remote search could not complete.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsServiceError reports whether err is or wraps a *ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// ErrPatternNotFound is returned when a release type identifier has no
// "#<TypeName>" suffix.
var ErrPatternNotFound = errors.New("album type pattern not found")
