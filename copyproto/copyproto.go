// Package copyproto implements the COPY sub-protocol (§4.7): the bulk
// row-transfer mode a Conn enters after a CopyInResponse or
// CopyOutResponse, where the usual message framing is replaced by a stream
// of CopyData chunks terminated by CopyDone/CopyFail (copy-in) or CopyDone
// (copy-out).
//
// Session is the shared state machine; RowWriter, ByteSink, and
// ReaderSource are three distinct facades over one Session, matching the
// three shapes a caller actually wants to drive COPY with: row-at-a-time
// values, pre-formatted chunks of bytes, or an io.Reader to pull from.
package copyproto

import (
	"io"
	"strconv"
	"strings"

	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// Direction is which side of the COPY sub-protocol a Session drives.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// SessionState is where a COPY sub-protocol exchange currently stands.
type SessionState int

const (
	StateActive SessionState = iota
	StateEndedOK
	StateCancelled
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "Active"
	case StateEndedOK:
		return "EndedOK"
	case StateCancelled:
		return "Cancelled"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// wireConn is the slice of protocol.Conn a Session needs: enough to send
// and receive COPY-phase messages without copyproto importing protocol
// (which would create an import cycle, since protocol is what constructs a
// Session).
type wireConn interface {
	WriteCopyData(data []byte) error
	WriteCopyDone() error
	WriteCopyFail(reason string) error
	ReadCopyMessage() (any, error)
	LastCopyTag() string
}

// Session is the state shared by every COPY facade on one connection. Only
// one Session may be active on a Conn at a time (the protocol state machine
// enforces this by only ever constructing one).
type Session struct {
	conn      wireConn
	direction Direction
	state     SessionState

	firstErr error
	rowCount int64

	overallFormat message.CopyFormat
	columnFormats []message.CopyFormat

	onComplete func(rowCount int64)
}

// New constructs a Session for a just-entered CopyIn or CopyOut state. resp
// carries the column format negotiation the server announced in its
// CopyInResponse/CopyOutResponse.
func New(conn wireConn, direction Direction, resp *message.CopyResponse) *Session {
	s := &Session{conn: conn, direction: direction, state: StateActive}
	if resp != nil {
		s.overallFormat = resp.OverallFormat
		s.columnFormats = resp.ColumnFormats
	}
	return s
}

// State reports where the Session currently stands.
func (s *Session) State() SessionState { return s.state }

// Err returns the first error recorded against this Session, sticky for
// its lifetime (mirrors the teacher's copyFromStdinState.copyErr: once an
// error occurs mid-stream, every subsequent chunk is a no-op and the
// original error is what's ultimately reported).
func (s *Session) Err() error { return s.firstErr }

// RowCount reports the number of rows this Session has transferred, parsed
// out of the terminal CommandComplete tag (e.g. "COPY 42") once the
// session has ended; 0 until then.
func (s *Session) RowCount() int64 { return s.rowCount }

// ColumnFormats reports the per-column text/binary format the server
// negotiated for this COPY, as announced in CopyInResponse/CopyOutResponse.
func (s *Session) ColumnFormats() []message.CopyFormat { return s.columnFormats }

// OverallFormat reports the server's overall COPY format (text/binary).
func (s *Session) OverallFormat() message.CopyFormat { return s.overallFormat }

// SetCompletionHook installs fn to be called once, with the final row
// count, when the Session reaches StateEndedOK. Intended for an ambient
// metrics.Recorder to observe CopyRows without this package importing
// metrics (mirrors transport.Conn.SetByteCounters).
func (s *Session) SetCompletionHook(fn func(rowCount int64)) {
	s.onComplete = fn
}

func (s *Session) complete(rowCount int64) {
	s.rowCount = rowCount
	s.state = StateEndedOK
	if s.onComplete != nil {
		s.onComplete(rowCount)
	}
}

// IsActive reports whether this Session is still accepting/producing
// CopyData: false once CopyDone, CopyFail, or an error has been observed
// (§4.7 facade contract).
func (s *Session) IsActive() bool {
	return s.state == StateActive
}

// CancelCopy voluntarily aborts a still-active Session. For copy-in it
// sends CopyFail with reason so the server unwinds the COPY and reports an
// error of its own, draining down to the terminal ReadyForQuery exactly as
// closeCopyIn does for a sticky error; for copy-out there is no wire
// analogue of CopyFail, so it just marks the session done locally. Calling
// CancelCopy on a Session that already ended (successfully, cancelled, or
// failed) returns an ObjectNotInState error instead of reacting twice.
func (s *Session) CancelCopy(reason string) error {
	if s.state != StateActive {
		return pgerr.NewStateError("CancelCopy", s.state.String())
	}
	if s.direction == DirectionIn {
		_ = s.conn.WriteCopyFail(reason)
	}
	s.state = StateCancelled
	return nil
}

func (s *Session) fail(err error) error {
	if s.firstErr == nil {
		s.firstErr = err
		s.state = StateFailed
	}
	return s.firstErr
}

// parseCopyTag extracts the row count from a "COPY n" CommandComplete tag.
// Grounded on the same tag-parsing idiom as SimpleQuery's CommandComplete
// handling, specialized to the one-word-plus-count shape COPY uses.
func parseCopyTag(tag string) int64 {
	fields := strings.Fields(tag)
	if len(fields) != 2 || fields[0] != "COPY" {
		return 0
	}
	n, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// RowWriter is the row-at-a-time COPY FROM STDIN facade: callers hand it
// already-text/binary-encoded field values for one row at a time and it
// assembles and sends wire-format COPY rows.
type RowWriter struct {
	session *Session
}

// NewRowWriter wraps s for row-at-a-time sends in COPY's text format (the
// only format RowWriter knows how to assemble; binary-format callers use
// ByteSink instead and build rows themselves).
func NewRowWriter(s *Session) *RowWriter {
	return &RowWriter{session: s}
}

// WriteRow sends one row of already-encoded text-format field values,
// tab-separating them and escaping tabs/newlines/backslashes per COPY TEXT
// format, terminated by a newline, as one CopyData message.
func (rw *RowWriter) WriteRow(fields []string) error {
	if rw.session.state != StateActive {
		return rw.session.firstErr
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(escapeCopyText(f))
	}
	b.WriteByte('\n')
	if err := rw.session.conn.WriteCopyData([]byte(b.String())); err != nil {
		return rw.session.fail(err)
	}
	return nil
}

// escapeCopyText backslash-escapes the characters COPY TEXT format treats
// specially within a field.
func escapeCopyText(s string) string {
	if !strings.ContainsAny(s, "\t\n\r\\") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Close ends the copy-in stream with CopyDone and waits for the server's
// CommandComplete, recording RowCount. If the Session already carries a
// sticky error, Close instead sends CopyFail with that error's message, per
// §4.7 "a failed facade must not send CopyDone".
func (rw *RowWriter) Close() error {
	return closeCopyIn(rw.session)
}

// ByteSink is the chunked-byte-sink COPY FROM STDIN facade: callers already
// have pre-formatted COPY data (text or binary, including the binary
// header/trailer) and just want to push byte chunks of arbitrary size.
type ByteSink struct {
	session *Session
}

// NewByteSink wraps s for raw chunked writes.
func NewByteSink(s *Session) *ByteSink { return &ByteSink{session: s} }

// Write implements io.Writer, sending chunk as one CopyData message.
// Arbitrary chunk boundaries are allowed; the server reassembles the
// logical COPY stream regardless of how it was split across CopyData
// messages.
func (bs *ByteSink) Write(chunk []byte) (int, error) {
	if bs.session.state != StateActive {
		return 0, bs.session.firstErr
	}
	if err := bs.session.conn.WriteCopyData(chunk); err != nil {
		return 0, bs.session.fail(err)
	}
	return len(chunk), nil
}

// Close ends the copy-in stream, mirroring RowWriter.Close.
func (bs *ByteSink) Close() error {
	return closeCopyIn(bs.session)
}

func closeCopyIn(s *Session) error {
	if s.state == StateFailed {
		_ = s.conn.WriteCopyFail(s.firstErr.Error())
		s.state = StateCancelled
		return s.firstErr
	}
	if s.state != StateActive {
		return s.firstErr
	}
	if err := s.conn.WriteCopyDone(); err != nil {
		return s.fail(err)
	}
	s.complete(parseCopyTag(s.conn.LastCopyTag()))
	return nil
}

// ReaderSource is the pull-from-reader COPY FROM STDIN facade: it drains an
// io.Reader in fixed-size chunks and streams them as CopyData messages,
// useful for piping a file or pipe directly into COPY without the caller
// buffering it first.
type ReaderSource struct {
	session   *Session
	chunkSize int
}

// DefaultChunkSize is how much of the source Reader PumpFrom reads per
// CopyData message.
const DefaultChunkSize = 64 * 1024

// NewReaderSource wraps s to pull from an io.Reader in DefaultChunkSize
// chunks.
func NewReaderSource(s *Session) *ReaderSource {
	return &ReaderSource{session: s, chunkSize: DefaultChunkSize}
}

// PumpFrom reads r to completion (io.EOF), sending each chunk as CopyData,
// then sends CopyDone and waits for CommandComplete. A read error from r
// itself (as opposed to a wire error) ends the stream with CopyFail rather
// than CopyDone.
func (rs *ReaderSource) PumpFrom(r io.Reader) error {
	if rs.session.state != StateActive {
		return rs.session.firstErr
	}
	buf := make([]byte, rs.chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := rs.session.conn.WriteCopyData(buf[:n]); werr != nil {
				return rs.session.fail(werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			rs.session.fail(err)
			_ = rs.session.conn.WriteCopyFail(err.Error())
			rs.session.state = StateCancelled
			return err
		}
	}
	if err := rs.session.conn.WriteCopyDone(); err != nil {
		return rs.session.fail(err)
	}
	rs.session.complete(parseCopyTag(rs.session.conn.LastCopyTag()))
	return nil
}

// Sink is the COPY TO STDOUT facade: it pulls CopyData chunks the server
// sends and exposes them through io.Reader, ending at CopyDone.
type Sink struct {
	session *Session
	pending []byte
	done    bool
}

// NewSink wraps s for a copy-out stream.
func NewSink(s *Session) *Sink { return &Sink{session: s} }

// Read implements io.Reader over the server's CopyData stream, returning
// io.EOF once the server's CopyDone has been observed.
func (sk *Sink) Read(p []byte) (int, error) {
	if sk.session.firstErr != nil {
		return 0, sk.session.firstErr
	}
	for len(sk.pending) == 0 {
		if sk.done {
			return 0, io.EOF
		}
		msg, err := sk.session.conn.ReadCopyMessage()
		if err != nil {
			return 0, sk.session.fail(err)
		}
		switch m := msg.(type) {
		case *message.CopyData:
			sk.pending = m.Data
		case *message.CopyDone:
			sk.done = true
			sk.session.complete(parseCopyTag(sk.session.conn.LastCopyTag()))
		default:
			return 0, sk.session.fail(pgerr.NewProtocolViolation("unexpected message during copy-out", nil))
		}
	}
	n := copy(p, sk.pending)
	sk.pending = sk.pending[n:]
	return n, nil
}
