// Package coordinator owns the open browser sessions and serves the
// collaborator operations: open, classify, generate, run and close.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/ai"
	"github.com/v0xg/jobfill/internal/classifier"
	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/flow"
	"github.com/v0xg/jobfill/internal/jobinfo"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
	"github.com/v0xg/jobfill/internal/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrBusy            = errors.New("session is already running a document")
	ErrNoDocument      = errors.New("no document supplied or generated for session")
	ErrNoProvider      = errors.New("no instruction generator configured")
)

// Tab is one open page.
type Tab interface {
	dom.Page
	Close() error
}

// Opener opens a tab on a URL.
type Opener interface {
	Open(ctx context.Context, url string) (Tab, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) (Tab, error)

func (f OpenerFunc) Open(ctx context.Context, url string) (Tab, error) { return f(ctx, url) }

// ProfileSource returns the current user profile.
type ProfileSource func(ctx context.Context) (*profile.Profile, error)

// StaticProfile serves p.
func StaticProfile(p *profile.Profile) ProfileSource {
	return func(context.Context) (*profile.Profile, error) { return p, nil }
}

// FileProfile reloads the profile file on every request so edits apply
// without a restart.
func FileProfile(path string) ProfileSource {
	return func(context.Context) (*profile.Profile, error) {
		p, err := profile.Load(path)
		if err != nil {
			return nil, err
		}
		return p, p.Validate()
	}
}

// Options configures a Coordinator.
type Options struct {
	Opener     Opener
	Classifier *classifier.Classifier
	Detector   classifier.DetectorOptions
	Provider   ai.Provider
	Profile    ProfileSource
	Flow       flow.Options
	Logger     *zap.Logger
}

// Classification is the short classification answer.
type Classification struct {
	IsMatch bool    `json:"is_match"`
	Method  string  `json:"method"`
	Score   float64 `json:"score"`
}

// RunOutcome is a run result plus the posting it applied to and the
// answers the form held at the end. Both are set on success only.
type RunOutcome struct {
	*flow.Result
	Job     *jobinfo.Info    `json:"job,omitempty"`
	Answers *jobinfo.Answers `json:"application_content,omitempty"`
}

// Session is one open tab.
type Session struct {
	ID  session.ID
	URL string

	tab  Tab
	busy sync.Mutex

	mu  sync.Mutex
	doc *protocol.Document
}

func (s *Session) document() *protocol.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

func (s *Session) setDocument(doc *protocol.Document) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

// Coordinator tracks sessions.
type Coordinator struct {
	opener   Opener
	detector *classifier.Detector
	provider ai.Provider
	profiles ProfileSource
	flowOpts flow.Options
	registry *session.Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[session.ID]*Session
}

// New creates a coordinator.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(classifier.DefaultWeights(), opts.Logger)
	}
	if opts.Detector.Logger == nil {
		opts.Detector.Logger = opts.Logger
	}
	if opts.Flow.Logger == nil {
		opts.Flow.Logger = opts.Logger
	}
	return &Coordinator{
		opener:   opts.Opener,
		detector: classifier.NewDetector(opts.Classifier, opts.Detector),
		provider: opts.Provider,
		profiles: opts.Profile,
		flowOpts: opts.Flow,
		registry: session.NewRegistry(),
		logger:   opts.Logger.Named("coordinator"),
		sessions: make(map[session.ID]*Session),
	}
}

// Registry exposes the classification registry.
func (c *Coordinator) Registry() *session.Registry {
	return c.registry
}

// OpenSession opens url in a new tab.
func (c *Coordinator) OpenSession(ctx context.Context, url string) (session.ID, error) {
	if c.opener == nil {
		return "", errors.New("no browser configured")
	}
	tab, err := c.opener.Open(ctx, url)
	if err != nil {
		return "", err
	}
	return c.Attach(url, tab), nil
}

// Attach registers an already open tab.
func (c *Coordinator) Attach(url string, tab Tab) session.ID {
	s := &Session{ID: session.NewID(), URL: url, tab: tab}

	c.mu.Lock()
	c.sessions[s.ID] = s
	n := len(c.sessions)
	c.mu.Unlock()

	c.logger.Info("session opened", zap.String("session", string(s.ID)), zap.String("url", url), zap.Int("open", n))
	return s.ID
}

func (c *Coordinator) session(id session.ID) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Classify runs the detector on the session's page, records the result and
// returns its short form.
func (c *Coordinator) Classify(ctx context.Context, id session.ID) (Classification, error) {
	s, err := c.session(id)
	if err != nil {
		return Classification{}, err
	}
	res, err := c.detector.Detect(ctx, s.tab)
	if err != nil {
		return Classification{}, err
	}
	// Close may have run during detection; a closed session stays forgotten.
	c.mu.RLock()
	live := c.sessions[id] == s
	if live {
		c.registry.Record(id, res)
	}
	c.mu.RUnlock()
	if !live {
		return Classification{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	c.logger.Info("classified",
		zap.String("session", string(id)),
		zap.Bool("match", res.IsMatch),
		zap.Float64("score", res.Score))
	return Classification{IsMatch: res.IsMatch, Method: res.Method, Score: res.Score}, nil
}

// Classification returns the latest recorded result.
func (c *Coordinator) Classification(id session.ID) (classifier.Result, bool) {
	return c.registry.Get(id)
}

// Profile returns the current user profile.
func (c *Coordinator) Profile(ctx context.Context) (*profile.Profile, error) {
	if c.profiles == nil {
		return nil, errors.New("no profile configured")
	}
	return c.profiles(ctx)
}

// Generate builds a document for the session's current page and keeps it
// as the session's default document.
func (c *Coordinator) Generate(ctx context.Context, id session.ID) (*protocol.Document, error) {
	s, err := c.session(id)
	if err != nil {
		return nil, err
	}
	if c.provider == nil {
		return nil, ErrNoProvider
	}
	p, err := c.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	snap, err := s.tab.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	doc, err := c.provider.GenerateDocument(ctx, snap, p)
	if err != nil {
		return nil, err
	}
	s.setDocument(doc)

	c.logger.Info("document generated",
		zap.String("session", string(id)),
		zap.Int("pages", doc.TotalPages))
	return doc, nil
}

// Start runs doc on the session, or the last generated document when doc
// is nil. One run per session at a time; a second call gets ErrBusy.
func (c *Coordinator) Start(ctx context.Context, id session.ID, doc *protocol.Document) (*RunOutcome, error) {
	s, err := c.session(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = s.document()
	}
	if doc == nil {
		return nil, ErrNoDocument
	}
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	defer s.busy.Unlock()

	var job *jobinfo.Info
	if snap, err := s.tab.Snapshot(ctx); err == nil {
		info := jobinfo.Extract(snap)
		job = &info
	}

	opts := c.flowOpts
	opts.Logger = opts.Logger.With(zap.String("session", string(id)))
	res := flow.New(s.tab, opts).Run(ctx, doc)

	out := &RunOutcome{Result: res}
	if res.Success {
		out.Job = job
		if snap, err := s.tab.Snapshot(ctx); err == nil {
			answers := jobinfo.CollectAnswers(snap, time.Now())
			out.Answers = &answers
		} else {
			c.logger.Warn("failed to collect answers", zap.String("session", string(id)), zap.Error(err))
		}
	}
	c.logger.Info("run finished",
		zap.String("session", string(id)),
		zap.Bool("success", res.Success),
		zap.String("error", res.Error),
		zap.Int("steps", len(res.Log)))
	return out, nil
}

// Close closes the session's tab and forgets it.
func (c *Coordinator) Close(id session.ID) error {
	c.mu.Lock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	c.registry.Forget(id)

	c.logger.Info("session closed", zap.String("session", string(id)))
	return s.tab.Close()
}

// Shutdown closes every session.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[session.ID]*Session)
	c.mu.Unlock()

	var errs []error
	for id, s := range sessions {
		c.registry.Forget(id)
		if err := s.tab.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
