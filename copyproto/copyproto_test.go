package copyproto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// fakeConn is a hand-rolled wireConn stand-in: no net.Pipe or message codec
// needed to exercise Session's state machine, since wireConn is already the
// seam between copyproto and the wire.
type fakeConn struct {
	sent      [][]byte
	failedWith string
	doneCalled bool
	tag       string
	outbox    []any
	outboxPos int
}

func (f *fakeConn) WriteCopyData(data []byte) error {
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeConn) WriteCopyDone() error {
	f.doneCalled = true
	return nil
}

func (f *fakeConn) WriteCopyFail(reason string) error {
	f.failedWith = reason
	return nil
}

func (f *fakeConn) LastCopyTag() string { return f.tag }

func (f *fakeConn) ReadCopyMessage() (any, error) {
	if f.outboxPos >= len(f.outbox) {
		return nil, io.EOF
	}
	m := f.outbox[f.outboxPos]
	f.outboxPos++
	return m, nil
}

func TestRowWriterAssemblesTabSeparatedRows(t *testing.T) {
	fc := &fakeConn{tag: "COPY 2"}
	s := New(fc, DirectionIn, nil)
	rw := NewRowWriter(s)

	require.NoError(t, rw.WriteRow([]string{"1", "hello\tworld"}))
	require.NoError(t, rw.WriteRow([]string{"2", "plain"}))
	require.NoError(t, rw.Close())

	require.Len(t, fc.sent, 2)
	require.Equal(t, "1\thello\\tworld\n", string(fc.sent[0]))
	require.Equal(t, "2\tplain\n", string(fc.sent[1]))
	require.True(t, fc.doneCalled)
	require.Equal(t, StateEndedOK, s.State())
	require.Equal(t, int64(2), s.RowCount())
}

func TestByteSinkStickyErrorSendsCopyFail(t *testing.T) {
	fc := &fakeConn{}
	s := New(fc, DirectionIn, nil)
	sink := NewByteSink(s)

	_, err := sink.Write([]byte("a,b,c\n"))
	require.NoError(t, err)

	s.fail(errBoom)

	_, err = sink.Write([]byte("d,e,f\n"))
	require.Error(t, err)

	require.Error(t, sink.Close())
	require.Equal(t, StateCancelled, s.State())
	require.Equal(t, errBoom.Error(), fc.failedWith)
	require.False(t, fc.doneCalled)
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }

func TestReaderSourcePumpsAllChunks(t *testing.T) {
	fc := &fakeConn{tag: "COPY 1"}
	s := New(fc, DirectionIn, nil)
	rs := NewReaderSource(s)
	rs.chunkSize = 4

	src := bytes.NewBufferString("0123456789")
	require.NoError(t, rs.PumpFrom(src))

	var got bytes.Buffer
	for _, chunk := range fc.sent {
		got.Write(chunk)
	}
	require.Equal(t, "0123456789", got.String())
	require.True(t, fc.doneCalled)
	require.Equal(t, int64(1), s.RowCount())
}

func TestSinkReadsCopyDataUntilCopyDone(t *testing.T) {
	fc := &fakeConn{
		tag: "COPY 3",
		outbox: []any{
			&message.CopyData{Data: []byte("ab")},
			&message.CopyData{Data: []byte("cd")},
			&message.CopyDone{},
		},
	}
	s := New(fc, DirectionOut, nil)
	sink := NewSink(s)

	all, err := io.ReadAll(sink)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(all))
	require.Equal(t, StateEndedOK, s.State())
	require.Equal(t, int64(3), s.RowCount())
}

func TestCompletionHookFiresOnceWithFinalRowCount(t *testing.T) {
	fc := &fakeConn{tag: "COPY 5"}
	s := New(fc, DirectionIn, nil)
	rw := NewRowWriter(s)

	var calls int
	var got int64
	s.SetCompletionHook(func(rowCount int64) {
		calls++
		got = rowCount
	})

	require.NoError(t, rw.Close())
	require.Equal(t, 1, calls)
	require.Equal(t, int64(5), got)
}

func TestCancelCopyInSendsCopyFailAndDeactivates(t *testing.T) {
	fc := &fakeConn{}
	s := New(fc, DirectionIn, nil)
	require.True(t, s.IsActive())

	require.NoError(t, s.CancelCopy("caller gave up"))
	require.False(t, s.IsActive())
	require.Equal(t, StateCancelled, s.State())
	require.Equal(t, "caller gave up", fc.failedWith)
}

func TestCancelCopyOutMarksDoneWithoutWireFail(t *testing.T) {
	fc := &fakeConn{}
	s := New(fc, DirectionOut, nil)
	require.True(t, s.IsActive())

	require.NoError(t, s.CancelCopy("caller gave up"))
	require.False(t, s.IsActive())
	require.Equal(t, StateCancelled, s.State())
	require.Empty(t, fc.failedWith)
}

func TestCancelCopyAfterCompletionFailsWithObjectNotInState(t *testing.T) {
	fc := &fakeConn{tag: "COPY 1"}
	s := New(fc, DirectionIn, nil)
	rw := NewRowWriter(s)
	require.NoError(t, rw.Close())
	require.Equal(t, StateEndedOK, s.State())

	err := s.CancelCopy("too late")
	require.Error(t, err)

	var stateErr *pgerr.StateError
	require.ErrorAs(t, err, &stateErr)
	require.False(t, s.IsActive())
}

func TestParseCopyTag(t *testing.T) {
	require.Equal(t, int64(42), parseCopyTag("COPY 42"))
	require.Equal(t, int64(0), parseCopyTag("SELECT 1"))
	require.Equal(t, int64(0), parseCopyTag(""))
}
