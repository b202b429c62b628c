// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package console

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/novakernel/sys/internal/console/vt100"
)

// ServiceRegistry models the narrow contract a session holds with the
// location directory (locsrv bookkeeping itself is out of scope, per
// spec §1; only this contract is in scope, per SPEC_FULL §3.6).
type ServiceRegistry interface {
	Register(name string) (handle any, err error)
	Unregister(handle any)
}

// TaskResult is the outcome of a spawned getterm task, grounded on
// remcons.c's spawn_task_fibril (task_exit_t + retval).
type TaskResult struct {
	Normal bool
	Code   int
}

// TaskSpawner models the narrow contract a session holds with the task
// manager to start a getterm task attached to the session's registered
// service name (spec §4.6 "Startup"). Done delivers the task's result
// once, when the task exits; a failure to spawn is reported through err.
type TaskSpawner interface {
	Spawn(serviceName string) (done <-chan TaskResult, err error)
}

const (
	defaultCols = 80
	defaultRows = 24
	historyLines = 1000
)

// Session spans one TCP connection, per spec §4.6. It owns a telnet
// receiver, a VT100 emulator, an output buffer and cursor, and a
// cons-event queue, and tracks the three lifecycle counters remcons.c
// uses to decide when the session may be destroyed.
type Session struct {
	id   uuid.UUID
	conn net.Conn
	log  *logrus.Entry

	registry ServiceRegistry
	spawner  TaskSpawner
	svcName  string
	svcHandle any

	telnet *Telnet
	out    *Output
	events *EventQueue
	emu    *vt100.Emulator

	ctl, rgb bool

	// lifecycle state, guarded by mu, matching §5's "one fibril-mutex
	// for receive/lifecycle" plus a condition variable.
	mu              sync.Mutex
	cond            *sync.Cond
	taskFinished    bool
	socketClosed    bool
	locsrvConnCount int
	destroyed       bool

	mapMu   sync.Mutex
	mapBuf  []vt100.Cell
	mapCols int
	mapRows int
}

// NewSession wires a fresh session around an accepted TCP connection.
// ctl/rgb are the capability-mode flags from config.go.
func NewSession(conn net.Conn, registry ServiceRegistry, spawner TaskSpawner, ctl, rgb bool) *Session {
	id := uuid.New()
	s := &Session{
		id:       id,
		conn:     conn,
		log:      logrus.WithField("session_id", id.String()),
		registry: registry,
		spawner:  spawner,
		telnet:   NewTelnet(),
		events:   NewEventQueue(),
		ctl:      ctl,
		rgb:      rgb,
	}
	s.cond = sync.NewCond(&s.mu)
	s.out = NewOutput(conn, ctl)
	s.emu = vt100.NewEmulator(defaultCols, defaultRows, historyLines, ctl, rgb, s)
	s.telnet.OnWindowSize = s.handleWindowSize
	s.telnet.OnNegotiate = s.handleNegotiate
	return s
}

// --- vt100.Callbacks ---

func (s *Session) Putchar(r rune) {
	if err := s.out.Write([]byte(string(r))); err != nil {
		s.log.WithError(err).Warn("telnet write failed")
		s.abort()
	}
}

func (s *Session) ControlPuts(seq string) {
	if err := s.out.Write([]byte(seq)); err != nil {
		s.log.WithError(err).Warn("telnet control write failed")
		s.abort()
	}
}

func (s *Session) Flush() {
	if err := s.out.Flush(); err != nil {
		s.log.WithError(err).Warn("telnet flush failed")
		s.abort()
	}
}

func (s *Session) Key(mods vt100.KeyMod, ch rune) {
	s.events.PushKey(mods, ch)
}

func (s *Session) PosEvent(col, row int, pressed bool) {
	s.events.Push(Event{Kind: EventPos, Col: col, Row: row, Pressed: pressed})
}

func (s *Session) Update(col, row int, cells []vt100.Cell) {
	for _, c := range cells {
		s.out.Write([]byte(string(c.Glyph)))
	}
}

func (s *Session) Refresh() {
	s.out.Flush()
}

// --- startup / run loop ---

// Start performs spec §4.6's startup sequence: force character mode,
// register the session's service name, and spawn the getterm task.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.conn.Write(StartupNegotiation()); err != nil {
		return fmt.Errorf("telnet startup negotiation: %w", err)
	}

	s.svcName = "term/remote/" + s.id.String()
	handle, err := s.registry.Register(s.svcName)
	if err != nil {
		// Any location-service error during registration aborts the
		// session (spec §4.6 "Failure semantics").
		s.log.WithError(err).Error("service registration failed")
		return fmt.Errorf("register %s: %w", s.svcName, err)
	}
	s.svcHandle = handle

	done, err := s.spawner.Spawn(s.svcName)
	if err != nil {
		// Spawning getterm failing sets task_finished immediately so
		// the destroy condition is reached (spec §4.6).
		s.log.WithError(err).Error("getterm spawn failed")
		s.SetTaskFinished(TaskResult{})
		return nil
	}

	go func() {
		select {
		case res := <-done:
			s.log.WithField("normal", res.Normal).WithField("code", res.Code).Info("getterm task exited")
			s.SetTaskFinished(res)
		case <-ctx.Done():
		}
	}()

	return nil
}

// Run drives the telnet receiver until EOF or ctx cancellation, via an
// errgroup so the first failure (of receive vs. context) tears the
// session down, per SPEC_FULL §2's errgroup wiring.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.recvLoop(ctx)
	})
	return g.Wait()
}

// recvLoop feeds telnet-decoded application bytes through the
// emulator's input decoder (vt100.Emulator.RcvdChar), which in turn
// fires the Key/PosEvent callbacks that land cons-events on the queue
// (spec §4.6 "Input events").
func (s *Session) recvLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			app := s.telnet.Feed(buf[:n])
			for _, b := range app {
				s.emu.RcvdChar(b)
			}
		}
		if err != nil {
			s.log.WithError(err).Debug("telnet connection closed")
			s.SetSocketClosed()
			return nil
		}
	}
}

func (s *Session) handleWindowSize(cols, rows int) {
	s.emu.Resize(cols, rows)
	s.events.Push(Event{Kind: EventResize, Col: cols, Row: rows})
}

func (s *Session) handleNegotiate(cmd, opt byte) {
	if opt != telnetNAWS {
		return
	}
	// WILL NAWS -> DO NAWS, per user.c's process_telnet_will_naws.
	s.out.Write(EncodeNAWSReply())
	s.out.Flush()
}

// abort marks the transport unusable after a send error; per spec §7
// "any TCP send error causes the session to become unusable; it is not
// retried."
func (s *Session) abort() {
	s.SetSocketClosed()
}

// --- lifecycle counters ---

// SetTaskFinished records that the getterm task has exited (observed
// via task-wait) and re-evaluates the destroy predicate.
func (s *Session) SetTaskFinished(TaskResult) {
	s.mu.Lock()
	s.taskFinished = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.maybeDestroy()
}

// SetSocketClosed records TCP EOF/error and re-evaluates the destroy
// predicate.
func (s *Session) SetSocketClosed() {
	s.mu.Lock()
	s.socketClosed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.events.Close()
	s.maybeDestroy()
}

// IncLocsrvConn and DecLocsrvConn track inbound location-service
// connections to this session's registered service (spec's data model
// §3 "locsrv_connection_count").
func (s *Session) IncLocsrvConn() {
	s.mu.Lock()
	s.locsrvConnCount++
	s.mu.Unlock()
}

func (s *Session) DecLocsrvConn() {
	s.mu.Lock()
	s.locsrvConnCount--
	s.mu.Unlock()
	s.cond.Broadcast()
	s.maybeDestroy()
}

// canDestroyLocked is the predicate of spec §4.6 "Teardown":
// task_finished && socket_closed && locsrv_connection_count == 0.
func (s *Session) canDestroyLocked() bool {
	return s.taskFinished && s.socketClosed && s.locsrvConnCount == 0 && !s.destroyed
}

func (s *Session) maybeDestroy() {
	s.mu.Lock()
	if !s.canDestroyLocked() {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()
	s.teardown()
}

// teardown resets SGR, clears the emulator's grid and the screen, sends
// FIN and unregisters the service, per spec §4.6's last paragraph.
func (s *Session) teardown() {
	s.out.Write([]byte("\x1b[0m"))
	s.emu.Clear()
	s.out.Flush()
	if closer, ok := s.conn.(interface{ CloseWrite() error }); ok {
		closer.CloseWrite()
	} else {
		s.conn.Close()
	}
	s.registry.Unregister(s.svcHandle)
	s.log.Info("session destroyed")
}

// --- mapped charfield buffer ---

// Map allocates a shared cols x rows charfield buffer the client can
// request, per spec §4.6 "Mapped buffer". It returns ErrNotSup when
// the control capability is disabled, matching §4.6's "no mapping
// buffer (MAP returns NOTSUP)" dumb-terminal rule.
func (s *Session) Map(cols, rows int) ([]vt100.Cell, error) {
	if !s.ctl {
		return nil, ErrNotSup
	}
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.mapCols, s.mapRows = cols, rows
	s.mapBuf = make([]vt100.Cell, cols*rows)
	return s.mapBuf, nil
}

// Unmap releases the mapped buffer.
func (s *Session) Unmap() {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.mapBuf = nil
	s.mapCols, s.mapRows = 0, 0
}

// UpdateRect renders the intersection of [c0,r0)-[c1,r1) with both the
// session's own cols x rows and the mapped buffer's dimensions, hiding
// the cursor during the repaint and restoring it after, per §4.6.
func (s *Session) UpdateRect(c0, r0, c1, r1 int) error {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if s.mapBuf == nil {
		return ErrNoEnt
	}

	cols, rows := s.emu.Grid().Cols(), s.emu.Grid().Rows()
	if c1 > cols {
		c1 = cols
	}
	if r1 > rows {
		r1 = rows
	}
	if c1 > s.mapCols {
		c1 = s.mapCols
	}
	if r1 > s.mapRows {
		r1 = s.mapRows
	}
	if c0 >= c1 || r0 >= r1 {
		return nil
	}

	s.out.HideCursor()
	for row := r0; row < r1; row++ {
		for col := c0; col < c1; col++ {
			cell := s.mapBuf[row*s.mapCols+col]
			s.out.Write([]byte(string(cell.Glyph)))
		}
	}
	s.out.ShowCursor()
	return s.out.Flush()
}

// ID returns the session's unique identifier, used in log fields and
// as the location-service registration name suffix.
func (s *Session) ID() uuid.UUID { return s.id }

// Events returns the session's cons-event queue for the console
// protocol's get_event handler.
func (s *Session) Events() *EventQueue { return s.events }

// Emulator returns the session's VT100 emulator.
func (s *Session) Emulator() *vt100.Emulator { return s.emu }
