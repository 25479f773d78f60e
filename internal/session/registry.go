package session

import (
	"context"
	"sync"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/bobarin/reze/internal/chat"
	"github.com/bobarin/reze/internal/credential"
	"github.com/bobarin/reze/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultIdleTTL = 30 * time.Minute
	minReapEvery   = time.Second
)

// Session is one mounted studio view. Its video job and chat transcript live
// exactly as long as the session.
type Session struct {
	ID        uuid.UUID
	Job       *animate.Job
	Chat      *chat.Transcript
	CreatedAt time.Time

	lastSeen time.Time
}

type Options struct {
	Video     services.VideoGenerator
	Assistant services.Assistant
	Gate      *credential.Gate
	Clock     animate.Clock
	Logger    *zap.Logger
	Observers []animate.Observer

	PollInterval    time.Duration
	MessageInterval time.Duration
	MaxPollDuration time.Duration
	IdleTTL         time.Duration
}

// Registry owns every live session and reaps the ones nobody has touched
// within the idle TTL.
type Registry struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = animate.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Registry{
		opts:     opts,
		log:      opts.Logger.Named("session"),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create mounts a new view. The returned flag is the credential gate's
// availability, re-checked on mount.
func (r *Registry) Create(ctx context.Context) (*Session, bool) {
	available := r.opts.Gate.CheckAvailability(ctx)
	now := r.opts.Clock.Now()
	id := uuid.New()

	s := &Session{
		ID: id,
		Job: animate.NewJob(animate.Options{
			SessionID:       id,
			Service:         r.opts.Video,
			Gate:            r.opts.Gate,
			Clock:           r.opts.Clock,
			Logger:          r.opts.Logger.Named("animate"),
			PollInterval:    r.opts.PollInterval,
			MessageInterval: r.opts.MessageInterval,
			MaxPollDuration: r.opts.MaxPollDuration,
			Observers:       r.opts.Observers,
		}),
		Chat:      chat.NewTranscript(r.opts.Assistant, r.opts.Logger.Named("chat")),
		CreatedAt: now,
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("session created", zap.String("session_id", id.String()), zap.Int("live", n), zap.Bool("key_available", available))
	return s, available
}

// Get returns the session and marks it as seen.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.opts.Clock.Now()
	}
	return s, ok
}

// Close unmounts a session, tearing down its video job.
func (r *Registry) Close(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.Job.Close()
	r.log.Info("session closed", zap.String("session_id", id.String()))
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes sessions last seen before now minus the idle TTL.
func (r *Registry) Reap(now time.Time) int {
	cutoff := now.Add(-r.opts.IdleTTL)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Job.Close()
		r.log.Info("session reaped", zap.String("session_id", s.ID.String()))
	}
	return len(stale)
}

// CloseAll tears down every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Job.Close()
	}
	if len(all) > 0 {
		r.log.Info("closed all sessions", zap.Int("count", len(all)))
	}
}

// Run reaps idle sessions until ctx is done, then closes the rest.
func (r *Registry) Run(ctx context.Context) error {
	every := r.opts.IdleTTL / 2
	if every < minReapEvery {
		every = minReapEvery
	}
	t := r.opts.Clock.NewTicker(every)
	defer t.Stop()
	defer r.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			if n := r.Reap(r.opts.Clock.Now()); n > 0 {
				r.log.Debug("reaper pass", zap.Int("reaped", n), zap.Int("live", r.Len()))
			}
		}
	}
}
