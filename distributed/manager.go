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

// Package distributed owns this node's place in the distributed search
// tree (§4.9): acquiring one parent from the server's NetInfo candidate
// list, admitting up to max_children children, forwarding distributed
// search requests parent-to-children verbatim, and keeping
// BranchLevel/BranchRoot/ChildDepth consistent with both ends as the tree
// reshapes around it.
package distributed

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	libctx "github.com/sabouaram/soulseek/context"
	"github.com/sabouaram/soulseek/logger"
	"github.com/sabouaram/soulseek/peer"
	"github.com/sabouaram/soulseek/protocol"
	"github.com/sabouaram/soulseek/transport"
)

// ServerLink pushes this node's branch-state up to the server channel and
// carries the fallback delivery of search requests while no parent is
// held (§4.9, §9 OQ2).
type ServerLink interface {
	SendBranchLevel(ctx context.Context, level uint32) error
	SendBranchRoot(ctx context.Context, root string) error
	SendChildDepth(ctx context.Context, depth uint32) error
	SendHaveNoParents(ctx context.Context, have bool) error
}

// SearchHandler receives every distributed search request this node
// observes, from a parent or from the server fallback channel, before it
// is forwarded on to children.
type SearchHandler func(req *protocol.DistributedSearchRequest)

type childConn struct {
	username string
	mc       *transport.MessageConnection

	mu    sync.Mutex
	depth uint32
}

func (c *childConn) setDepth(d uint32) {
	c.mu.Lock()
	c.depth = d
	c.mu.Unlock()
}

func (c *childConn) getDepth() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

// Manager owns the parent connection (if any), the admitted children, and
// the branch bookkeeping the distributed tree imposes.
type Manager struct {
	log      logger.Logger
	peers    *peer.Manager
	server   ServerLink
	onSearch SearchHandler

	maxChildren int

	mu         sync.RWMutex
	parentUser string
	parentConn *transport.MessageConnection
	level      uint32
	root       string
	childDepth uint32

	children libctx.Config[string] // username -> *childConn
}

// New constructs a Manager with no parent and no children.
func New(log logger.Logger, peers *peer.Manager, server ServerLink, onSearch SearchHandler, maxChildren int) *Manager {
	return &Manager{
		log:         log,
		peers:       peers,
		server:      server,
		onSearch:    onSearch,
		maxChildren: maxChildren,
		children:    libctx.NewConfig[string](nil),
	}
}

// BranchState is a snapshot of this node's current position in the tree.
type BranchState struct {
	HasParent  bool
	Parent     string
	Level      uint32
	Root       string
	ChildDepth uint32
	ChildCount int
}

// State returns a snapshot of the current branch state.
func (m *Manager) State() BranchState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BranchState{
		HasParent:  m.parentConn != nil,
		Parent:     m.parentUser,
		Level:      m.level,
		Root:       m.root,
		ChildDepth: m.childDepth,
		ChildCount: m.countChildren(),
	}
}

// countChildren walks the child map since Config[T] exposes no direct
// length accessor.
func (m *Manager) countChildren() int {
	n := 0
	m.children.Walk(func(_ string, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// AcquireParent races a direct/indirect establishment attempt against
// every candidate the server offered in NetInfo (§4.9): the first one to
// complete a socket becomes our parent, the rest are abandoned. If
// candidates is empty or every attempt fails, the node stays parentless
// and the caller should fall back to server-delivered search requests
// (§9 OQ2).
func (m *Manager) AcquireParent(ctx context.Context, candidates []protocol.NetInfoEntry) error {
	if len(candidates) == 0 {
		return ErrorNoParentCandidates.Error(nil)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type winner struct {
		username string
		mc       *transport.MessageConnection
	}
	won := make(chan winner, 1)

	g, gctx := errgroup.WithContext(raceCtx)
	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			conn, err := m.peers.Establish(gctx, cand.Username, peer.TypeDistrib)
			if err != nil {
				return err
			}

			mc := transport.NewMessageConnection(
				transport.Adopt(conn),
				func(frame []byte) { m.onParentFrame(cand.Username, frame) },
				func(reason transport.Reason) { m.onParentClosed(cand.Username, reason) },
				nil,
			)

			select {
			case won <- winner{username: cand.Username, mc: mc}:
			default:
				cancel()
				_ = mc.Underlying().Disconnect(transport.ReasonLocalClose)
			}
			return nil
		})
	}

	allDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(allDone)
	}()

	select {
	case w := <-won:
		cancel()
		m.setParent(w.username, w.mc)
		return nil
	case <-allDone:
		select {
		case w := <-won:
			m.setParent(w.username, w.mc)
			return nil
		default:
			return ErrorParentAcquisitionFailed.Error(nil)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) setParent(username string, mc *transport.MessageConnection) {
	m.mu.Lock()
	m.parentUser = username
	m.parentConn = mc
	m.mu.Unlock()

	_ = m.server.SendHaveNoParents(context.Background(), false)
}

// onParentClosed is invoked when the parent connection closes, whether
// from a remote hangup or the race picking a different winner later.
func (m *Manager) onParentClosed(username string, reason transport.Reason) {
	m.mu.Lock()
	if m.parentUser != username {
		m.mu.Unlock()
		return
	}
	m.parentUser = ""
	m.parentConn = nil
	m.level = 0
	m.root = ""
	m.mu.Unlock()

	if m.log != nil {
		m.log.Info("distributed parent connection closed", reason, username)
	}
	_ = m.server.SendHaveNoParents(context.Background(), true)
}

func (m *Manager) onParentFrame(username string, frame []byte) {
	m.mu.RLock()
	isCurrent := m.parentUser == username
	m.mu.RUnlock()
	if !isCurrent {
		return
	}

	code, msg, ok, err := protocol.DecodeDistributed(frame)
	if err != nil || !ok {
		if m.log != nil && err != nil {
			m.log.Debug("failed to decode distributed frame from parent", err, username, code)
		}
		return
	}

	switch v := msg.(type) {
	case *protocol.BranchLevel:
		m.applyBranchLevel(v.Level)
	case *protocol.BranchRoot:
		m.applyBranchRoot(v.Root)
	case *protocol.DistributedSearchRequest:
		m.handleParentSearchRequest(v)
	case *protocol.DistributedPing:
		// no reply required
	}
}

func (m *Manager) applyBranchLevel(parentLevel uint32) {
	m.mu.Lock()
	m.level = parentLevel + 1
	lvl := m.level
	m.mu.Unlock()

	m.broadcastToChildren((&protocol.BranchLevel{Level: lvl}).ToBytes())
	_ = m.server.SendBranchLevel(context.Background(), lvl)
}

func (m *Manager) applyBranchRoot(root string) {
	m.mu.Lock()
	m.root = root
	m.mu.Unlock()

	m.broadcastToChildren((&protocol.BranchRoot{Root: root}).ToBytes())
	_ = m.server.SendBranchRoot(context.Background(), root)
}

// handleParentSearchRequest is invoked for every DistributedSearchRequest
// received from the parent: it is handed to onSearch and forwarded to
// every admitted child verbatim (§4.9, S3).
func (m *Manager) handleParentSearchRequest(req *protocol.DistributedSearchRequest) {
	if m.onSearch != nil {
		m.onSearch(req)
	}
	m.broadcastToChildren(req.ToBytes())
}

// HandleFallbackSearchRequest is invoked for a SearchRequest delivered
// directly by the server (§9 OQ2, the no-parent fallback): it is handed
// to onSearch and forwarded to children exactly like a parent-delivered
// one.
func (m *Manager) HandleFallbackSearchRequest(username string, token uint32, query string) {
	m.handleParentSearchRequest(&protocol.DistributedSearchRequest{Username: username, Token: token, Query: query})
}

func (m *Manager) broadcastToChildren(frame []byte) {
	m.children.Walk(func(_ string, val interface{}) bool {
		c := val.(*childConn)
		_ = c.mc.Write(context.Background(), frame, nil)
		return true
	})
}

// AdmitChild is called by the listener/peer-init dispatch when a socket
// opens with a "D" kind PeerInit or PierceFirewall: it is accepted as a
// new child if max_children has not been reached.
func (m *Manager) AdmitChild(username string, conn *transport.Connection, preread []byte) error {
	if m.maxChildren > 0 && m.countChildren() >= m.maxChildren {
		return ErrorChildLimitReached.Error(nil)
	}

	c := &childConn{username: username}
	c.mc = transport.NewMessageConnection(
		conn,
		func(frame []byte) { m.onChildFrame(c, frame) },
		func(transport.Reason) { m.removeChild(username) },
		preread,
	)
	m.children.Store(username, c)

	m.mu.RLock()
	lvl, root := m.level, m.root
	m.mu.RUnlock()
	_ = c.mc.Write(context.Background(), (&protocol.BranchLevel{Level: lvl}).ToBytes(), nil)
	_ = c.mc.Write(context.Background(), (&protocol.BranchRoot{Root: root}).ToBytes(), nil)

	m.recomputeChildDepth()
	return nil
}

func (m *Manager) removeChild(username string) {
	m.children.LoadAndDelete(username)
	m.recomputeChildDepth()
}

func (m *Manager) onChildFrame(c *childConn, frame []byte) {
	code, msg, ok, err := protocol.DecodeDistributed(frame)
	if err != nil || !ok {
		if m.log != nil && err != nil {
			m.log.Debug("failed to decode distributed frame from child", err, c.username, code)
		}
		return
	}

	switch v := msg.(type) {
	case *protocol.ChildDepth:
		c.setDepth(v.Depth)
		m.recomputeChildDepth()
	case *protocol.DistributedSearchRequest, *protocol.DistributedPing:
		// Children do not originate search requests or pings upward in
		// this tree; anything they send here is dropped (§9 OQ3).
	}
}

// recomputeChildDepth is our own subtree depth: one more than the deepest
// child-reported depth, or zero with no children. The result is both
// reported to the server and forwarded upward to our parent.
func (m *Manager) recomputeChildDepth() {
	var deepest uint32
	any := false
	m.children.Walk(func(_ string, val interface{}) bool {
		c := val.(*childConn)
		if d := c.getDepth(); !any || d > deepest {
			deepest = d
			any = true
		}
		return true
	})

	m.mu.Lock()
	if any {
		m.childDepth = deepest + 1
	} else {
		m.childDepth = 0
	}
	depth := m.childDepth
	parent := m.parentConn
	m.mu.Unlock()

	_ = m.server.SendChildDepth(context.Background(), depth)
	if parent != nil {
		_ = parent.Write(context.Background(), (&protocol.ChildDepth{Depth: depth}).ToBytes(), nil)
	}
}

// Close releases the parent connection and every admitted child.
func (m *Manager) Close() {
	m.mu.Lock()
	parent := m.parentConn
	m.parentConn = nil
	m.mu.Unlock()

	if parent != nil {
		_ = parent.Underlying().Disconnect(transport.ReasonLocalClose)
	}

	m.children.Walk(func(_ string, val interface{}) bool {
		c := val.(*childConn)
		_ = c.mc.Underlying().Disconnect(transport.ReasonLocalClose)
		return true
	})
	m.children.Clean()
}
