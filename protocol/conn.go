// Copyright 2023 Dolthub, Inc.
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

package protocol

import (
	"fmt"
	"net"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cedardb/pgwire/auth"
	"github.com/cedardb/pgwire/cancel"
	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/metrics"
	"github.com/cedardb/pgwire/pgerr"
	"github.com/cedardb/pgwire/pgtype"
	"github.com/cedardb/pgwire/transport"
)

// HandlePanics controls whether Conn's internal panic-containment recovers
// a panic into a pgerr.ProtocolViolation (true) or lets it propagate to the
// caller's goroutine (false). Tests that want a panic to fail loudly set
// this to false; production callers leave it at the default.
var HandlePanics = true

// DefaultPrepareThreshold is the number of executions of identical SQL at
// which the connection stops re-Parsing it as the unnamed statement and
// promotes it to a named server-side prepared statement (§4.6).
const DefaultPrepareThreshold = 5

// DefaultPreparedStatementCacheSize bounds the number of server-side
// prepared statements a Conn keeps live at once; the least recently used
// entry is evicted (and best-effort Close'd) to make room for a new one.
const DefaultPreparedStatementCacheSize = 64

// Conn is one client connection to a PostgreSQL-wire-protocol server: the
// byte transport, the type registry, and the state machine described in
// spec.md §3-§5, all in one.
type Conn struct {
	t              *transport.Conn
	Types          *pgtype.Registry
	MaxMessageSize uint32

	mu       sync.Mutex
	state    State
	txStatus TxStatus

	backendPID    int32
	backendSecret int32
	parameters    map[string]string

	statements *lruCache
	portals    map[string]*Portal

	prepareThreshold int
	parseCounts      map[string]int
	promotedNames    map[string]string

	lastCopyTag string // most recent COPY CommandComplete tag, e.g. "COPY 42"
	lastCopyErr error  // sticky error observed while draining a COPY's terminal sequence

	metrics *metrics.Recorder
}

// PreparedStatement is a server-side statement this Conn has Parse'd,
// either as an unnamed (re-Parsed every time) or named (cached) statement.
type PreparedStatement struct {
	Name      string
	SQL       string
	ParamOIDs []uint32
	RowDesc   *message.RowDescription
	promoted  bool // true once sent to the server with Parse rather than re-issued each time
}

// Portal is a bound, executable instance of a PreparedStatement.
type Portal struct {
	Name      string
	Statement *PreparedStatement
}

// Dial opens nc as a pgwire connection in the Disconnected state. The
// caller still must call Startup before issuing any query.
func Dial(nc net.Conn) *Conn {
	return &Conn{
		t:                transport.New(nc),
		Types:            pgtype.NewRegistry(),
		MaxMessageSize:   message.DefaultMaxMessageSize,
		state:            StateDisconnected,
		parameters:       map[string]string{},
		statements:       newLRUCache(DefaultPreparedStatementCacheSize),
		portals:          map[string]*Portal{},
		prepareThreshold: DefaultPrepareThreshold,
		parseCounts:      map[string]int{},
		promotedNames:    map[string]string{},
	}
}

// SetMetrics attaches rec as this Conn's metrics.Recorder: every message
// sent/received and every byte moved on the wire from this point on is
// reported to rec. Passing nil detaches metrics again. A Conn with no
// Recorder attached (the default) pays no instrumentation cost.
func (c *Conn) SetMetrics(rec *metrics.Recorder) {
	c.metrics = rec
	c.t.SetByteCounters(rec.BytesReceived, rec.BytesSent)
}

// send writes msg and records it with the attached Recorder, if any. Every
// frontend message this package writes goes through this one chokepoint so
// metrics wiring lives in one place rather than at every call site.
func (c *Conn) send(msg message.FrontendMessage) error {
	if err := message.WriteFrontend(c.t, msg); err != nil {
		return err
	}
	if kind, ok := frontendKind(msg); ok {
		c.metrics.MessageSent(kind)
	}
	return nil
}

// recv reads the next backend message and records it with the attached
// Recorder, if any.
func (c *Conn) recv() (message.BackendMessage, error) {
	msg, err := message.ReadBackend(c.t, c.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	if kind, ok := backendKind(msg); ok {
		c.metrics.MessageReceived(kind)
	}
	return msg, nil
}

// State reports the connection's current state machine node.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TxStatus reports the most recent transaction status observed on a
// ReadyForQuery message.
func (c *Conn) TxStatus() TxStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txStatus
}

// ParameterStatus returns the last-announced value of a GUC (server_version,
// client_encoding, TimeZone, ...), and whether it has ever been announced.
func (c *Conn) ParameterStatus(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.parameters[name]
	return v, ok
}

// BackendKey returns the process id and secret key BackendKeyData supplied,
// used to build a CancelRequest.
func (c *Conn) BackendKey() (pid, secret int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backendPID, c.backendSecret
}

// CancelRequest builds the cancel.Request this Conn's backend key
// identifies, for a caller to send on a new connection via cancel.Send (the
// cancel channel is never this same Conn — the protocol requires a fresh
// connection per §4.5).
func (c *Conn) CancelRequest() cancel.Request {
	pid, secret := c.BackendKey()
	return cancel.Request{BackendPID: pid, BackendSecret: secret}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Conn) requireState(op string, want ...State) error {
	cur := c.State()
	for _, w := range want {
		if cur == w {
			return nil
		}
	}
	return pgerr.NewStateError(op, cur.String())
}

// guard runs fn with the panic-containment circuit breaker spec.md's state
// machine requires: a panic anywhere in the protocol layer is recovered,
// logged, converted to a ProtocolViolation, and transitions the connection
// to Closed rather than crashing the caller's goroutine.
func (c *Conn) guard(op string, fn func() error) (err error) {
	if HandlePanics {
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("pgwire: recovered panic during %s: %v\n%s", op, r, string(debug.Stack()))
				c.setState(StateClosed)
				err = pgerr.NewProtocolViolation(fmt.Sprintf("internal panic during %s", op), asError(r))
			}
		}()
	}
	return fn()
}

func asError(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("%v", r)
}

// Close terminates the connection: if it is still usable, a Terminate
// message is sent first; the transport is always closed regardless.
func (c *Conn) Close() error {
	state := c.State()
	if state != StateClosed && state != StateDisconnected {
		c.setState(StateClosing)
		_ = c.send(&message.Terminate{})
		_ = c.t.Flush()
	}
	c.setState(StateClosed)
	return c.t.Close()
}

// poisonClose transitions to Closed without attempting a graceful
// Terminate, used after a TransportError or ProtocolViolation where the
// stream can no longer be trusted.
func (c *Conn) poisonClose() {
	c.setState(StateClosed)
	_ = c.t.Close()
}

// fail is the connection's single fatal/non-fatal policy point (§7): it
// classifies err with pgerr.IsFatal and poisons the connection only when
// the classification calls for it (transport faults, protocol violations,
// and FATAL/PANIC ServerErrors), replacing what used to be an ad hoc
// poisonClose() call duplicated at every read/write error site. err is
// returned unchanged either way.
func (c *Conn) fail(err error) error {
	if pgerr.IsFatal(err) {
		c.poisonClose()
	}
	return err
}

// AuthCredentials configures the auth.Responder Startup drives the
// authentication exchange with.
type AuthCredentials struct {
	User     string
	Password string
	Plugins  map[string]auth.Plugin
}
