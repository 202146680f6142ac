// Package auth detects anonymous/authenticated transitions of the local
// session. It never issues or refreshes credentials.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/imi-storefront/internal/storage"
)

type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// Transition is emitted once per detected edge. Identity is the identity
// being entered on login and the one being left on logout.
type Transition struct {
	From     Status
	To       Status
	Identity *Identity
}

func (t Transition) IsLogin() bool {
	return t.To == StatusAuthenticated
}

type ObserverConfig struct {
	Source       TokenSource
	Decoder      Decoder
	Clock        clock.Clock
	PollInterval time.Duration
	// Watcher, when set, triggers an immediate re-check whenever WatchKey
	// changes (another process signing in or out). An empty WatchKey
	// re-checks on any change.
	Watcher  storage.Watcher
	WatchKey string
	Logger   logrus.FieldLogger
}

func (c *ObserverConfig) Validate() error {
	if c.Source == nil {
		return errors.New("missing token source")
	}
	if c.Decoder == nil {
		return errors.New("missing decoder")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// Observer tracks the session status and notifies subscribers of edges only.
type Observer struct {
	cfg    ObserverConfig
	logger logrus.FieldLogger

	// checkMu serializes checks, including subscriber dispatch, so an edge
	// is delivered exactly once even when a poll and a change notification
	// race.
	checkMu sync.Mutex

	// stateMu guards status and identity for readers; only Check writes
	// them, while holding checkMu.
	stateMu  sync.RWMutex
	status   Status
	identity *Identity

	subMu  sync.Mutex
	subs   map[int]func(Transition)
	nextID int
}

func NewObserver(cfg ObserverConfig) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Observer{
		cfg:    cfg,
		logger: logger.WithField("component", "auth_observer"),
		status: StatusAnonymous,
		subs:   make(map[int]func(Transition)),
	}, nil
}

// IsAuthenticated decodes the current credential without emitting. When the
// credential cannot be read it reports the last observed status.
func (o *Observer) IsAuthenticated() bool {
	identity, err := o.decode()
	if err != nil {
		return o.Status() == StatusAuthenticated
	}
	return identity != nil
}

// Status returns the last observed status.
func (o *Observer) Status() Status {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.status
}

func (o *Observer) Identity() *Identity {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.identity
}

func (o *Observer) set(status Status, identity *Identity) {
	o.stateMu.Lock()
	o.status, o.identity = status, identity
	o.stateMu.Unlock()
}

// Subscribe registers fn for transitions. The returned func unsubscribes.
func (o *Observer) Subscribe(fn func(Transition)) func() {
	o.subMu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subs, id)
			o.subMu.Unlock()
		})
	}
}

// Check re-reads the credential and emits on an edge. Switching directly
// from one account to another is reported as a logout followed by a login.
// A credential that cannot be read leaves the status unchanged.
func (o *Observer) Check() {
	o.checkMu.Lock()
	defer o.checkMu.Unlock()

	current, err := o.decode()
	if err != nil {
		return
	}

	switch {
	case current == nil && o.status == StatusAnonymous:
		return
	case current != nil && o.status == StatusAuthenticated:
		if o.identity != nil && o.identity.UserID == current.UserID {
			o.set(StatusAuthenticated, current)
			return
		}
		previous := o.identity
		o.set(StatusAnonymous, nil)
		o.emit(Transition{From: StatusAuthenticated, To: StatusAnonymous, Identity: previous})
		fallthrough
	case current != nil:
		o.set(StatusAuthenticated, current)
		o.emit(Transition{From: StatusAnonymous, To: StatusAuthenticated, Identity: current})
	default:
		previous := o.identity
		o.set(StatusAnonymous, nil)
		o.emit(Transition{From: StatusAuthenticated, To: StatusAnonymous, Identity: previous})
	}
}

// Run checks immediately, then on every poll tick and storage change until
// ctx is done.
func (o *Observer) Run(ctx context.Context) error {
	var changes <-chan string
	if o.cfg.Watcher != nil {
		ch, err := o.cfg.Watcher.Watch(ctx)
		if err != nil {
			o.logger.WithError(err).Warn("Storage change notifications unavailable, relying on polling")
		} else {
			changes = ch
		}
	}

	o.Check()

	timer := o.cfg.Clock.NewTimer(o.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
			o.Check()
			timer.Reset(o.cfg.PollInterval)
		case key, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if o.cfg.WatchKey == "" || key == o.cfg.WatchKey {
				o.Check()
			}
		}
	}
}

// decode returns nil for an absent or rejected credential. The error is
// reserved for a source that could not be read.
func (o *Observer) decode() (*Identity, error) {
	token, err := o.cfg.Source.Token()
	if err != nil {
		o.logger.WithError(err).Warn("Failed to read credential, keeping session status")
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	identity, err := o.cfg.Decoder.Decode(token)
	if err != nil {
		o.logger.WithError(err).Debug("Credential rejected, treating session as anonymous")
		return nil, nil
	}
	return identity, nil
}

func (o *Observer) emit(t Transition) {
	o.subMu.Lock()
	subs := make([]func(Transition), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.subMu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"from": t.From,
		"to":   t.To,
	}).Info("Session transition detected")

	for _, fn := range subs {
		fn(t)
	}
}
