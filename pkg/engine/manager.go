// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

var (
	// ErrManagerClosed is returned by Submit after Shutdown.
	ErrManagerClosed = errors.New("session manager is closed")

	// ErrSessionEnded is returned for turns queued on a session that ended
	// before they ran.
	ErrSessionEnded = errors.New("session ended")
)

// TurnProcessor runs a single turn. *Engine implements it.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sess *session.Context, utterance string) (*types.TurnResult, error)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// NewSession creates the context for a session id seen for the first
	// time.
	NewSession func(id string) (*session.Context, error)

	// QueueSize bounds the turns waiting on one session. Default 8.
	QueueSize int

	// IdleTimeout ends a session after this long without a turn. Zero
	// keeps sessions until End or Shutdown.
	IdleTimeout time.Duration

	Metrics *Metrics
	Logger  *zap.Logger
}

// Manager serialises turns per session. Each session gets one worker
// goroutine, so turns on a session run in submission order while different
// sessions proceed in parallel.
type Manager struct {
	processor TurnProcessor
	config    ManagerConfig
	logger    *zap.Logger

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup
}

type turnRequest struct {
	ctx       context.Context
	utterance string
	reply     chan turnReply
}

type turnReply struct {
	result *types.TurnResult
	err    error
}

type worker struct {
	sess  *session.Context
	queue chan turnRequest
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (w *worker) stop() {
	w.once.Do(func() { close(w.quit) })
}

// NewManager creates a Manager driving processor.
func NewManager(processor TurnProcessor, config ManagerConfig) (*Manager, error) {
	if processor == nil {
		return nil, fmt.Errorf("turn processor is required")
	}
	if config.NewSession == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 8
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Manager{
		processor: processor,
		config:    config,
		logger:    config.Logger,
		workers:   make(map[string]*worker),
	}, nil
}

// Submit queues an utterance on the session and waits for its result. The
// session is created on first use.
func (m *Manager) Submit(ctx context.Context, sessionID, utterance string) (*types.TurnResult, error) {
	w, err := m.worker(sessionID)
	if err != nil {
		return nil, err
	}
	req := turnRequest{ctx: ctx, utterance: utterance, reply: make(chan turnReply, 1)}

	select {
	case w.queue <- req:
	case <-w.quit:
		return nil, ErrSessionEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-w.done:
		select {
		case r := <-req.reply:
			return r.result, r.err
		default:
			return nil, ErrSessionEnded
		}
	case <-ctx.Done():
		// The worker observes the same context and leaves the session
		// untouched.
		return nil, ctx.Err()
	}
}

func (m *Manager) worker(id string) (*worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if w, ok := m.workers[id]; ok {
		return w, nil
	}
	sess, err := m.config.NewSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	w := &worker{
		sess:  sess,
		queue: make(chan turnRequest, m.config.QueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	m.workers[id] = w
	m.wg.Add(1)
	m.config.Metrics.sessionStarted()
	m.logger.Debug("session started", zap.String("session_id", id))
	go m.run(id, w)
	return w, nil
}

func (m *Manager) run(id string, w *worker) {
	defer m.wg.Done()
	defer close(w.done)
	defer m.config.Metrics.sessionEnded()
	defer m.forget(id, w)
	defer func() {
		m.logger.Debug("session closed",
			zap.String("session_id", id),
			zap.Duration("age", time.Since(w.sess.CreatedAt())),
			zap.Int("lines", len(w.sess.Lines())))
	}()

	var idle <-chan time.Time
	var timer *time.Timer
	if m.config.IdleTimeout > 0 {
		timer = time.NewTimer(m.config.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case req := <-w.queue:
			m.serve(w, req)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(m.config.IdleTimeout)
			}
		case <-idle:
			m.logger.Debug("session idle", zap.String("session_id", id))
			w.stop()
			m.drain(w)
			return
		case <-w.quit:
			m.drain(w)
			return
		}
	}
}

func (m *Manager) serve(w *worker, req turnRequest) {
	if err := req.ctx.Err(); err != nil {
		req.reply <- turnReply{err: err}
		return
	}
	res, err := m.processor.ProcessTurn(req.ctx, w.sess, req.utterance)
	if err != nil && req.ctx.Err() == nil {
		m.logger.Error("turn failed",
			zap.String("session_id", w.sess.ID()),
			zap.Error(err))
	}
	req.reply <- turnReply{result: res, err: err}
}

// drain answers every queued request once the worker is stopping.
func (m *Manager) drain(w *worker) {
	for {
		select {
		case req := <-w.queue:
			req.reply <- turnReply{err: ErrSessionEnded}
		default:
			return
		}
	}
}

func (m *Manager) forget(id string, w *worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workers[id] == w {
		delete(m.workers, id)
	}
}

// End stops the session's worker and waits for it. Turns still queued get
// ErrSessionEnded. Ending an unknown session is a no-op.
func (m *Manager) End(id string) {
	m.mu.Lock()
	w, ok := m.workers[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	w.stop()
	<-w.done
}

// Sessions lists the ids with a running worker, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops accepting turns, stops every worker and waits for them or
// for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, w := range m.workers {
		w.stop()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
