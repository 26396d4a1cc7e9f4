package suggest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mbsuggest/internal/logger"
	"mbsuggest/internal/metadata"
	"mbsuggest/internal/track"
)

// State is the dialog state.
type State int

const (
	StateIdle    State = iota // dialog closed, list empty
	StateLoading              // fetch in flight, loading indicator shown
	StateShowing              // rows shown
	StateError                // fetch failed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateShowing:
		return "showing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ValidationError is raised by user actions that are not allowed in the
// current dialog state. It never changes the state.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrInvalidSelection is returned by Select for an index outside the rows.
var ErrInvalidSelection = errors.New("selection out of range")

// ErrNoTrack is returned by Begin when the host has no track selected.
var ErrNoTrack = errors.New("no track selected")

// Session is one suggestion dialog. Results of a fetch are applied with
// Deliver on whichever goroutine owns the dialog; only the most recent fetch
// can populate the rows.
type Session struct {
	provider metadata.Provider
	host     Host
	logger   *logger.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	track      track.Track
	query      string
	rows       []metadata.Row
	selected   int
	err        error
}

// Fetch is a pending search started by Begin.
type Fetch struct {
	Generation uint64
	Query      string

	ctx      context.Context
	provider metadata.Provider
	logger   *logger.Logger
}

// Result is the outcome of a Fetch, to be handed to Session.Deliver.
type Result struct {
	Generation uint64
	Rows       []metadata.Row
	Err        error
}

// Run performs the remote search and maps its candidates to rows. It blocks
// and may be called from any goroutine.
func (f *Fetch) Run() Result {
	cands, err := f.provider.Search(f.ctx, f.Query)
	if err != nil {
		return Result{Generation: f.Generation, Err: err}
	}
	f.logger.Debug("%s returned %d candidates for %q", f.provider.Name(), len(cands), f.Query)
	return Result{Generation: f.Generation, Rows: metadata.MapRows(cands, f.logger)}
}

// Begin starts a new search for the host's selected track. Any fetch still
// in flight is cancelled and its result will be ignored. The returned Fetch
// must be run by the caller. The fetch context derives from ctx and is
// cancelled by Close or the next Begin.
func (s *Session) Begin(ctx context.Context) (*Fetch, error) {
	t, err := s.host.SelectedTrack()
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTrack
	}

	query := metadata.BuildQuery(t)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.generation++
	s.track = t
	s.query = query
	s.rows = nil
	s.selected = -1
	s.err = nil
	s.state = StateLoading

	s.logger.Debug("Searching suggestions (#%d): %q", s.generation, query)

	return &Fetch{
		Generation: s.generation,
		Query:      query,
		ctx:        fctx,
		provider:   s.provider,
		logger:     s.logger,
	}, nil
}

// Deliver applies a fetch result. It returns false and leaves the session
// untouched when the result belongs to a superseded or cancelled fetch.
func (s *Session) Deliver(res Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.Generation != s.generation || s.state != StateLoading {
		s.logger.Debug("Dropping stale suggestions (#%d, current #%d)", res.Generation, s.generation)
		return false
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if res.Err != nil {
		s.state = StateError
		s.err = res.Err
		s.rows = nil
		return true
	}

	s.state = StateShowing
	s.rows = res.Rows
	return true
}

// Select marks row i as the one to save.
func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateShowing || i < 0 || i >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrInvalidSelection, i)
	}
	s.selected = i
	return nil
}

// Save writes the selected row onto the track and closes the dialog.
// Without a selection it returns a *ValidationError and changes nothing.
// A write error is returned as is and the dialog stays open.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateShowing || s.selected < 0 || s.selected >= len(s.rows) {
		return &ValidationError{Message: NoSelectionText}
	}

	row := s.rows[s.selected]
	if err := metadata.WriteSelection(s.track, row.Selection()); err != nil {
		return err
	}

	s.logger.Info("Saved suggestion: %s - %s (%s, #%d)", row.Artist, row.Title, row.Album, row.TrackNumber)
	s.reset()
	return nil
}

// Close cancels any fetch in flight, clears the list and returns to Idle.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateIdle
	s.rows = nil
	s.selected = -1
	s.err = nil
}

// Snapshot is a copy of the session for rendering.
type Snapshot struct {
	State    State
	Query    string
	Rows     []metadata.Row
	Selected int // -1 when nothing is selected
	Err      error
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:    s.state,
		Query:    s.query,
		Rows:     append([]metadata.Row(nil), s.rows...),
		Selected: s.selected,
		Err:      s.err,
	}
}

// State returns the current dialog state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
