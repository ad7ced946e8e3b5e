/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package search owns query dispatch and per-token response aggregation
// (§4.13): choosing the right outgoing request for a search's scope,
// filtering inbound SearchResponse frames at both the response and file
// level, and completing a search at the first of caller cancellation,
// inactivity timeout, a response cap, or an overall deadline.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	libctx "github.com/sabouaram/soulseek/context"
	"github.com/sabouaram/soulseek/protocol"
)

// ScopeKind selects which outgoing request a Search issues.
type ScopeKind int

const (
	ScopeNetwork ScopeKind = iota
	ScopeRoom
	ScopeUser
	ScopeWishlist
)

// Scope is the target of a search: Name is only meaningful for Room/User.
type Scope struct {
	Kind ScopeKind
	Name string
}

// CompletionReason records why a Search stopped accepting responses.
type CompletionReason int

const (
	ReasonNone CompletionReason = iota
	ReasonCancelled
	ReasonTimedOut
	ReasonResponseCap
	ReasonDeadline
)

// State is a Search's lifecycle stage.
type State int

const (
	StatePending State = iota
	StateInProgress
	StateCompleted
)

// ResponseFilter rejects a whole SearchResponse before its files are even
// considered (§4.13 step 2).
type ResponseFilter struct {
	MinFreeSlots      uint32 // the wire only carries a has-slots bool; true counts as 1
	MaxQueueLength    uint32 // 0 = unbounded
	MinUploadSpeedBps uint32
	MinResultCount    int // minimum files listed in the raw response
}

func (f ResponseFilter) accepts(resp *protocol.SearchResponse) bool {
	var slots uint32
	if resp.FreeUploadSlots {
		slots = 1
	}
	if slots < f.MinFreeSlots {
		return false
	}
	if f.MaxQueueLength > 0 && resp.QueueLength > f.MaxQueueLength {
		return false
	}
	if resp.UploadSpeedBps < f.MinUploadSpeedBps {
		return false
	}
	if len(resp.Files) < f.MinResultCount {
		return false
	}
	return true
}

// FileFilter is applied per result file within an accepted response
// (§4.13 step 3). AllowCBR/AllowVBR default to false on the zero value;
// callers wanting both must set both true.
type FileFilter struct {
	IgnoredExtensions []string
	MinBitrateKbps    uint32
	MinSizeBytes      uint64
	MinDurationSec    uint32
	MinSampleRateHz   uint32
	MinBitDepth       uint32
	AllowCBR          bool
	AllowVBR          bool

	ignored map[string]struct{}
}

func (f *FileFilter) compile() {
	if f.ignored != nil || len(f.IgnoredExtensions) == 0 {
		return
	}
	f.ignored = make(map[string]struct{}, len(f.IgnoredExtensions))
	for _, ext := range f.IgnoredExtensions {
		f.ignored[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
}

func (f *FileFilter) accepts(file *protocol.SearchResultFile) bool {
	f.compile()
	if f.ignored != nil {
		if _, blocked := f.ignored[strings.ToLower(strings.TrimPrefix(file.Extension, "."))]; blocked {
			return false
		}
	}
	if file.BitrateKbps < f.MinBitrateKbps {
		return false
	}
	if file.Size < f.MinSizeBytes {
		return false
	}
	if file.DurationSec < f.MinDurationSec {
		return false
	}
	if file.SampleRateHz < f.MinSampleRateHz {
		return false
	}
	if file.BitDepth < f.MinBitDepth {
		return false
	}
	if file.IsVBR && !f.AllowVBR {
		return false
	}
	if !file.IsVBR && !f.AllowCBR {
		return false
	}
	return true
}

// Filters bundles both filtering stages for one Search.
type Filters struct {
	Response ResponseFilter
	File     FileFilter
}

// DefaultFilters accepts everything: both CBR and VBR, no minimums, no
// blocked extensions.
func DefaultFilters() Filters {
	return Filters{File: FileFilter{AllowCBR: true, AllowVBR: true}}
}

// Response is one peer's filtered, accepted contribution to a Search's
// aggregate.
type Response struct {
	Username        string
	Files           []protocol.SearchResultFile
	FreeUploadSlots bool
	UploadSpeedBps  uint32
	QueueLength     uint32
}

// Sender issues the outgoing request for a Search's scope (§4.13).
type Sender interface {
	SendFileSearch(ctx context.Context, token uint32, query string) error
	SendRoomSearch(ctx context.Context, room string, token uint32, query string) error
	SendUserSearch(ctx context.Context, username string, token uint32, query string) error
	SendWishlistSearch(ctx context.Context, token uint32, query string) error
}

// Search is one in-flight or completed query and its aggregated
// responses.
type Search struct {
	Token   uint32
	Query   string
	Scope   Scope
	Filters Filters

	onResponse func(Response)
	onComplete func(CompletionReason)

	mu        sync.Mutex
	state     State
	reason    CompletionReason
	responses []Response

	frame  chan *protocol.SearchResponse
	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the search's current lifecycle stage and, once
// completed, the reason.
func (s *Search) State() (State, CompletionReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.reason
}

// Responses returns a snapshot of the aggregate collected so far.
func (s *Search) Responses() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Response, len(s.responses))
	copy(out, s.responses)
	return out
}

// Cancel ends the search early with ReasonCancelled.
func (s *Search) Cancel() {
	s.cancel()
}

// Done is closed once the search has completed.
func (s *Search) Done() <-chan struct{} {
	return s.done
}

func (s *Search) run(ctx context.Context, inactivity time.Duration, maxResponses int) {
	defer close(s.done)

	var inactivityC <-chan time.Time
	var timer *time.Timer
	if inactivity > 0 {
		timer = time.NewTimer(inactivity)
		defer timer.Stop()
		inactivityC = timer.C
	}

	s.mu.Lock()
	s.state = StateInProgress
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			reason := ReasonCancelled
			if ctx.Err() == context.DeadlineExceeded {
				reason = ReasonDeadline
			}
			s.complete(reason)
			return

		case <-inactivityC:
			s.complete(ReasonTimedOut)
			return

		case resp := <-s.frame:
			accepted := s.ingest(resp)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(inactivity)
			}
			if accepted {
				s.mu.Lock()
				count := len(s.responses)
				s.mu.Unlock()
				if maxResponses > 0 && count >= maxResponses {
					s.complete(ReasonResponseCap)
					return
				}
			}
		}
	}
}

func (s *Search) ingest(resp *protocol.SearchResponse) bool {
	if !s.Filters.Response.accepts(resp) {
		return false
	}

	files := make([]protocol.SearchResultFile, 0, len(resp.Files))
	for i := range resp.Files {
		if s.Filters.File.accepts(&resp.Files[i]) {
			files = append(files, resp.Files[i])
		}
	}
	if len(files) == 0 {
		return false
	}

	out := Response{
		Username:        resp.Username,
		Files:           files,
		FreeUploadSlots: resp.FreeUploadSlots,
		UploadSpeedBps:  resp.UploadSpeedBps,
		QueueLength:     resp.QueueLength,
	}

	s.mu.Lock()
	s.responses = append(s.responses, out)
	s.mu.Unlock()

	if s.onResponse != nil {
		s.onResponse(out)
	}
	return true
}

func (s *Search) complete(reason CompletionReason) {
	s.mu.Lock()
	if s.state == StateCompleted {
		s.mu.Unlock()
		return
	}
	s.state = StateCompleted
	s.reason = reason
	s.mu.Unlock()

	if s.onComplete != nil {
		s.onComplete(reason)
	}
}

// Engine dispatches searches and routes inbound SearchResponse frames to
// the right Search by token.
type Engine struct {
	sender   Sender
	searches libctx.Config[uint32]
}

// NewEngine constructs an Engine.
func NewEngine(sender Sender) *Engine {
	return &Engine{sender: sender, searches: libctx.NewConfig[uint32](nil)}
}

// Options configures one call to Start.
type Options struct {
	InactivityTimeout time.Duration // search_timeout since the last response
	Deadline          time.Duration // overall cap from dispatch, 0 = unbounded
	MaxResponses      int           // 0 = unbounded
	OnResponse        func(Response)
	OnComplete        func(CompletionReason)
}

// Start registers token for scope/query, dispatches the matching outbound
// request, and returns the running Search. The caller owns ctx's
// lifetime; cancelling it ends the search with ReasonCancelled.
func (e *Engine) Start(ctx context.Context, token uint32, query string, scope Scope, filters Filters, opts Options) (*Search, error) {
	switch scope.Kind {
	case ScopeNetwork, ScopeRoom, ScopeUser, ScopeWishlist:
	default:
		return nil, ErrorUnknownScope.Error(nil)
	}
	if _, exists := e.searches.Load(token); exists {
		return nil, ErrorDuplicateToken.Error(nil)
	}

	runCtx := ctx
	var deadlineCancel context.CancelFunc
	if opts.Deadline > 0 {
		runCtx, deadlineCancel = context.WithTimeout(runCtx, opts.Deadline)
	}
	runCtx, manualCancel := context.WithCancel(runCtx)
	cancelAll := func() {
		manualCancel()
		if deadlineCancel != nil {
			deadlineCancel()
		}
	}

	s := &Search{
		Token:      token,
		Query:      query,
		Scope:      scope,
		Filters:    filters,
		onResponse: opts.OnResponse,
		onComplete: opts.OnComplete,
		frame:      make(chan *protocol.SearchResponse, 32),
		cancel:     cancelAll,
		done:       make(chan struct{}),
	}

	e.searches.Store(token, s)
	go func() {
		s.run(runCtx, opts.InactivityTimeout, opts.MaxResponses)
		cancelAll()
		e.searches.LoadAndDelete(token)
	}()

	if err := e.dispatch(ctx, token, query, scope); err != nil {
		cancelAll()
		e.searches.LoadAndDelete(token)
		return nil, err
	}

	return s, nil
}

func (e *Engine) dispatch(ctx context.Context, token uint32, query string, scope Scope) error {
	switch scope.Kind {
	case ScopeRoom:
		return e.sender.SendRoomSearch(ctx, scope.Name, token, query)
	case ScopeUser:
		return e.sender.SendUserSearch(ctx, scope.Name, token, query)
	case ScopeWishlist:
		return e.sender.SendWishlistSearch(ctx, token, query)
	default:
		return e.sender.SendFileSearch(ctx, token, query)
	}
}

// Ingest routes one decoded SearchResponse to its Search by token, if
// still active. Responses for unknown or already-completed tokens are
// dropped.
func (e *Engine) Ingest(resp *protocol.SearchResponse) {
	v, ok := e.searches.Load(resp.Token)
	if !ok {
		return
	}
	s := v.(*Search)
	select {
	case s.frame <- resp:
	default:
	}
}

// Get returns the Search registered under token, if any.
func (e *Engine) Get(token uint32) (*Search, bool) {
	v, ok := e.searches.Load(token)
	if !ok {
		return nil, false
	}
	return v.(*Search), true
}
