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

package transfer

import (
	"context"
	"encoding/binary"
	goerrors "errors"
	"io"
	"net"
	"sync"
	"time"

	libctx "github.com/sabouaram/soulseek/context"
	"github.com/sabouaram/soulseek/logger"
	"github.com/sabouaram/soulseek/peer"
	"github.com/sabouaram/soulseek/protocol"
	"github.com/sabouaram/soulseek/ratelimit"
	"github.com/sabouaram/soulseek/transport"
	"github.com/sabouaram/soulseek/waiter"
)

// TokenGenerator is the injected random-token collaborator (§1), shared
// with the rest of this module's connection-establishment code.
type TokenGenerator func() uint32

// FileSource resolves a filename this client shares into a seekable reader
// and its size, for serving an upload. Implementations that also satisfy
// io.Closer are closed once the upload finishes or fails.
type FileSource interface {
	Open(ctx context.Context, filename string) (io.ReadSeeker, int64, error)
}

// DownloadOptions configures one call to Download.
type DownloadOptions struct {
	StartOffset     int64 // usually 0; resumes a partial download
	ResponseTimeout time.Duration
	Governor        *ratelimit.Bucket // per-transfer throttle, in addition to the shared download bucket
	OnProgress      func(bytes, size int64)
	OnState         func(State)
}

type queuedUpload struct {
	username string
	filename string
}

// Manager runs both sides of the transfer handshake (§4.14): it dispatches
// outgoing downloads, answers or queues incoming download requests against
// a FileSource, and pumps bytes in both directions under two shared
// ratelimit.Bucket token buckets (one per direction).
type Manager struct {
	log     logger.Logger
	peers   *peer.Manager
	waiters *waiter.Registry
	source  FileSource
	newTok  TokenGenerator

	downloadBucket *ratelimit.Bucket
	uploadBucket   *ratelimit.Bucket

	maxConcurrentUploads int
	uploadMu             sync.Mutex
	activeUploads        int
	uploadQueue          []queuedUpload

	transfers      libctx.Config[uint32] // token -> *Transfer
	pendingInbound libctx.Config[string] // username -> *Transfer awaiting a passively-accepted socket
}

// New constructs a Manager. source may be nil for a download-only client;
// every incoming download request is then declined.
func New(
	log logger.Logger,
	peers *peer.Manager,
	waiters *waiter.Registry,
	downloadBucket, uploadBucket *ratelimit.Bucket,
	source FileSource,
	newTok TokenGenerator,
	maxConcurrentUploads int,
) *Manager {
	return &Manager{
		log:                  log,
		peers:                peers,
		waiters:              waiters,
		source:               source,
		newTok:               newTok,
		downloadBucket:       downloadBucket,
		uploadBucket:         uploadBucket,
		maxConcurrentUploads: maxConcurrentUploads,
		transfers:            libctx.NewConfig[uint32](nil),
		pendingInbound:       libctx.NewConfig[string](nil),
	}
}

// Get returns the transfer registered under token, if any.
func (m *Manager) Get(token uint32) (*Transfer, bool) {
	v, ok := m.transfers.Load(token)
	if !ok {
		return nil, false
	}
	return v.(*Transfer), true
}

// Close releases every tracked transfer and pending-inbound registration.
// Running transfers are not cancelled; callers should Cancel() each one
// first if an orderly shutdown is wanted.
func (m *Manager) Close() {
	m.transfers.Clean()
	m.pendingInbound.Clean()
}

// Download requests filename from username (§4.14 "Download state
// machine") and pumps the received bytes into sink. The returned Transfer
// tracks progress and lets the caller Cancel it.
func (m *Manager) Download(ctx context.Context, username, filename string, sink io.Writer, opts DownloadOptions) (*Transfer, error) {
	pc, err := m.peers.GetOrAddMessageConnection(ctx, username)
	if err != nil {
		return nil, err
	}

	transferCtx, cancel := context.WithCancel(ctx)
	t := &Transfer{
		Token:      m.newTok(),
		Username:   username,
		Filename:   filename,
		Direction:  Download,
		state:      StateQueued,
		onProgress: opts.OnProgress,
		onState:    opts.OnState,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	t.connCh = make(chan *transport.Connection, 1)

	m.transfers.Store(t.Token, t)
	go m.runDownload(transferCtx, pc, t, sink, opts)
	return t, nil
}

func (m *Manager) runDownload(ctx context.Context, pc *peer.PeerConn, t *Transfer, sink io.Writer, opts DownloadOptions) {
	defer func() {
		m.transfers.LoadAndDelete(t.Token)
		close(t.done)
	}()

	t.setState(StateInitializing)

	req := &protocol.TransferRequest{Direction: 0, Token: t.Token, Filename: t.Filename}
	if err := pc.Write(ctx, req.ToBytes()); err != nil {
		t.fail(StateErrored, err)
		return
	}

	respKey := waiter.Key("transfer-response", t.Username, t.Token)
	resp, err := waiter.Wait[*protocol.TransferResponse](ctx, m.waiters, respKey, opts.ResponseTimeout)
	if err != nil {
		t.fail(terminalStateFor(ctx, err), err)
		return
	}

	if !resp.Allowed {
		if err := m.awaitQueuedOffer(ctx, pc, t); err != nil {
			t.fail(terminalStateFor(ctx, err), err)
			return
		}
	} else {
		t.setSize(int64(resp.FileSize))
	}

	conn, err := m.awaitInboundConnection(ctx, t)
	if err != nil {
		t.fail(terminalStateFor(ctx, err), err)
		return
	}
	defer func() { _ = conn.Disconnect(transport.ReasonLocalClose) }()

	var offsetBuf [8]byte
	binary.LittleEndian.PutUint64(offsetBuf[:], uint64(opts.StartOffset))
	if err := conn.Write(ctx, offsetBuf[:], nil); err != nil {
		t.fail(StateErrored, err)
		return
	}

	t.setState(StateInProgress)
	_, size := t.Progress()
	remaining := size - opts.StartOffset

	var governor transport.Governor
	if opts.Governor != nil {
		governor = opts.Governor
	} else if m.downloadBucket != nil {
		governor = m.downloadBucket
	}

	n, err := conn.ReadToStream(ctx, remaining, &progressWriter{w: sink, t: t}, governor)
	t.noteProgress(0, true)

	if err != nil {
		t.fail(terminalStateFor(ctx, err), err)
		return
	}
	if n < remaining {
		t.fail(StateErrored, ErrorIncompleteData.Error(nil))
		return
	}
	t.setState(StateCompleted)
}

// awaitQueuedOffer implements the queue-mode leg of the download state
// machine: send QueueDownload, then wait indefinitely (bounded only by
// ctx) for the peer's own TransferRequest offering remote_token, and
// confirm it.
func (m *Manager) awaitQueuedOffer(ctx context.Context, pc *peer.PeerConn, t *Transfer) error {
	qd := &protocol.QueueDownload{Filename: t.Filename}
	if err := pc.Write(ctx, qd.ToBytes()); err != nil {
		return err
	}

	offerKey := waiter.Key("transfer-offer", t.Username, t.Filename)
	offer, err := waiter.WaitIndefinite[*protocol.TransferRequest](ctx, m.waiters, offerKey)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.Token = offer.Token
	t.mu.Unlock()
	t.setSize(int64(offer.FileSize))

	confirm := &protocol.TransferResponse{Token: offer.Token, Allowed: true, FileSize: offer.FileSize}
	return pc.Write(ctx, confirm.ToBytes())
}

// awaitInboundConnection blocks until the uploader's transfer-type socket
// is handed to this transfer by AdoptInboundConnection, or ctx ends.
func (m *Manager) awaitInboundConnection(ctx context.Context, t *Transfer) (*transport.Connection, error) {
	m.pendingInbound.Store(t.Username, t)
	defer m.pendingInbound.LoadAndDelete(t.Username)

	select {
	case conn := <-t.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AdoptInboundConnection hands an inbound transfer-type socket (classified
// by the listener, or resolved by peer.Manager's PierceFirewall path) to
// whichever download is currently waiting on one from username. Transfer
// sockets are correlated by username alone: this client runs at most one
// inbound transfer per counterpart at a time (documented simplification,
// see DESIGN.md).
func (m *Manager) AdoptInboundConnection(username string, conn net.Conn) error {
	v, ok := m.pendingInbound.LoadAndDelete(username)
	if !ok {
		_ = conn.Close()
		return ErrorUnknownTransfer.Error(nil)
	}
	t := v.(*Transfer)
	raw := m.peers.AdoptTransferConn(conn)

	select {
	case t.connCh <- raw:
		return nil
	default:
		_ = raw.Disconnect(transport.ReasonLocalClose)
		return ErrorUnknownTransfer.Error(nil)
	}
}

// HandleTransferRequest routes an inbound TransferRequest (§4.12 peer
// channel) to the right leg: Direction 0 is someone asking to download
// from us; Direction 1 is an uploader we queued behind finally offering
// our file.
func (m *Manager) HandleTransferRequest(ctx context.Context, username string, req *protocol.TransferRequest) {
	if req.Direction == 0 {
		m.handleDownloadRequest(ctx, username, req)
		return
	}
	m.waiters.Complete(waiter.Key("transfer-offer", username, req.Filename), req)
}

// HandleTransferResponse routes an inbound TransferResponse to whichever
// waiter registered it: our own download request, or our upload offer
// awaiting the requester's confirmation.
func (m *Manager) HandleTransferResponse(username string, resp *protocol.TransferResponse) {
	if m.waiters.Complete(waiter.Key("transfer-response", username, resp.Token), resp) {
		return
	}
	m.waiters.Complete(waiter.Key("transfer-offer-response", username, resp.Token), resp)
}

// HandleQueueDownload enqueues username's request for filename in the
// upload queue and attempts to drain it immediately.
func (m *Manager) HandleQueueDownload(ctx context.Context, username string, qd *protocol.QueueDownload) {
	m.uploadMu.Lock()
	m.uploadQueue = append(m.uploadQueue, queuedUpload{username: username, filename: qd.Filename})
	m.uploadMu.Unlock()
	m.pumpUploadQueue(ctx)
}

// HandleUploadFailed and HandleQueueFailed terminate the matching transfer
// (if still tracked) with the peer's reported reason.
func (m *Manager) HandleUploadFailed(username string, msg *protocol.UploadFailed) {
	m.failTransferByFilename(username, msg.Filename, ErrorUploadFailed.Error(nil))
}

func (m *Manager) HandleQueueFailed(username string, msg *protocol.QueueFailed) {
	m.failTransferByFilename(username, msg.Filename, ErrorQueueFailed.Error(goerrors.New(msg.Reason)))
}

func (m *Manager) failTransferByFilename(username, filename string, err error) {
	m.transfers.Walk(func(token uint32, v interface{}) bool {
		t := v.(*Transfer)
		if t.Username == username && t.Filename == filename {
			t.fail(StateRemotelyCancelled, err)
		}
		return true
	})
}

func (m *Manager) handleDownloadRequest(ctx context.Context, username string, req *protocol.TransferRequest) {
	if m.source == nil {
		m.sendTransferResponse(ctx, username, req.Token, false, 0, "no files shared")
		return
	}

	src, size, err := m.source.Open(ctx, req.Filename)
	if err != nil {
		m.sendTransferResponse(ctx, username, req.Token, false, 0, err.Error())
		return
	}

	if !m.acquireUploadSlot() {
		closeSource(src)
		m.sendTransferResponse(ctx, username, req.Token, false, 0, "queued")
		return
	}

	m.sendTransferResponse(ctx, username, req.Token, true, uint64(size), "")
	go m.runUpload(context.Background(), username, req.Token, req.Filename, src, size)
}

// pumpUploadQueue serves as many queued requests as free slots allow.
// Each candidate is served in its own goroutine so a slow responder
// doesn't stall the rest of the queue.
func (m *Manager) pumpUploadQueue(ctx context.Context) {
	for {
		entry, ok := m.dequeueUpload()
		if !ok {
			return
		}
		if !m.acquireUploadSlot() {
			m.requeueUpload(entry)
			return
		}
		go m.offerQueuedUpload(ctx, entry)
	}
}

func (m *Manager) dequeueUpload() (queuedUpload, bool) {
	m.uploadMu.Lock()
	defer m.uploadMu.Unlock()
	if len(m.uploadQueue) == 0 {
		return queuedUpload{}, false
	}
	e := m.uploadQueue[0]
	m.uploadQueue = m.uploadQueue[1:]
	return e, true
}

func (m *Manager) requeueUpload(e queuedUpload) {
	m.uploadMu.Lock()
	m.uploadQueue = append([]queuedUpload{e}, m.uploadQueue...)
	m.uploadMu.Unlock()
}

func (m *Manager) offerQueuedUpload(ctx context.Context, e queuedUpload) {
	if m.source == nil {
		m.releaseUploadSlot()
		return
	}
	src, size, err := m.source.Open(ctx, e.filename)
	if err != nil {
		m.releaseUploadSlot()
		return
	}

	token := m.newTok()
	offer := &protocol.TransferRequest{Direction: 1, Token: token, Filename: e.filename, FileSize: uint64(size), HasSize: true}

	pc, err := m.peers.GetOrAddMessageConnection(ctx, e.username)
	if err != nil {
		closeSource(src)
		m.releaseUploadSlot()
		return
	}
	if err := pc.Write(ctx, offer.ToBytes()); err != nil {
		closeSource(src)
		m.releaseUploadSlot()
		return
	}

	respKey := waiter.Key("transfer-offer-response", e.username, token)
	resp, err := waiter.Wait[*protocol.TransferResponse](ctx, m.waiters, respKey, 0)
	if err != nil || !resp.Allowed {
		closeSource(src)
		m.releaseUploadSlot()
		return
	}

	m.runUpload(ctx, e.username, token, e.filename, src, size)
}

func (m *Manager) runUpload(ctx context.Context, username string, token uint32, filename string, src io.ReadSeeker, size int64) {
	t := &Transfer{
		Token:     token,
		Username:  username,
		Filename:  filename,
		Direction: Upload,
		state:     StateInitializing,
		size:      size,
		done:      make(chan struct{}),
	}
	transferCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	m.transfers.Store(token, t)
	defer func() {
		m.transfers.LoadAndDelete(token)
		m.releaseUploadSlot()
		closeSource(src)
		close(t.done)
	}()

	conn, err := m.peers.AddTransferConnection(transferCtx, username)
	if err != nil {
		t.fail(StateErrored, err)
		return
	}
	defer func() { _ = conn.Disconnect(transport.ReasonLocalClose) }()

	var offsetBuf [8]byte
	if err := conn.Read(offsetBuf[:]); err != nil {
		t.fail(StateErrored, err)
		return
	}
	offset := int64(binary.LittleEndian.Uint64(offsetBuf[:]))
	if offset > 0 {
		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			t.fail(StateErrored, err)
			return
		}
	}

	t.setState(StateInProgress)
	remaining := size - offset
	var governor transport.Governor
	if m.uploadBucket != nil {
		governor = m.uploadBucket
	}
	n, err := conn.WriteFromStream(transferCtx, remaining, &progressReader{r: src, t: t}, governor)
	t.noteProgress(0, true)

	if err != nil {
		t.fail(terminalStateFor(transferCtx, err), err)
		return
	}
	if n < remaining {
		t.fail(StateErrored, ErrorIncompleteData.Error(nil))
		return
	}
	t.setState(StateCompleted)
}

func (m *Manager) sendTransferResponse(ctx context.Context, username string, token uint32, allowed bool, size uint64, message string) {
	pc, err := m.peers.GetOrAddMessageConnection(ctx, username)
	if err != nil {
		return
	}
	resp := &protocol.TransferResponse{Token: token, Allowed: allowed, FileSize: size, Message: message}
	_ = pc.Write(ctx, resp.ToBytes())
}

func (m *Manager) acquireUploadSlot() bool {
	m.uploadMu.Lock()
	defer m.uploadMu.Unlock()
	if m.maxConcurrentUploads > 0 && m.activeUploads >= m.maxConcurrentUploads {
		return false
	}
	m.activeUploads++
	return true
}

// releaseUploadSlot frees one upload slot and offers it to the next queued
// request, if any.
func (m *Manager) releaseUploadSlot() {
	m.uploadMu.Lock()
	if m.activeUploads > 0 {
		m.activeUploads--
	}
	m.uploadMu.Unlock()
	m.pumpUploadQueue(context.Background())
}

func closeSource(src io.ReadSeeker) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}

// terminalStateFor maps a context/IO error into the right terminal State:
// explicit cancellation vs. a deadline distinguishes Cancelled from
// TimedOut, mirroring search.Search's use of ctx.Err().
func terminalStateFor(ctx context.Context, err error) State {
	if ctx.Err() == context.DeadlineExceeded {
		return StateTimedOut
	}
	if ctx.Err() == context.Canceled {
		return StateCancelled
	}
	return StateErrored
}

// progressWriter wraps a download sink to report bytes as they are written.
type progressWriter struct {
	w io.Writer
	t *Transfer
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.t.noteProgress(int64(n), false)
	}
	return n, err
}

// progressReader wraps an upload source to report bytes as they are read.
type progressReader struct {
	r io.Reader
	t *Transfer
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.t.noteProgress(int64(n), false)
	}
	return n, err
}
