package message

// DescribeTarget / CloseTarget distinguish a prepared statement from a
// portal in Describe and Close messages (§4.2).
type DescribeTarget byte

const (
	TargetStatement DescribeTarget = 'S'
	TargetPortal    DescribeTarget = 'P'
)

// Bind binds parameter values to a named (or unnamed, "") statement,
// producing a named (or unnamed) portal.
type Bind struct {
	Portal           string
	Statement        string
	ParamFormats     []FieldFormat
	Params           [][]byte
	ResultFormats    []FieldFormat
}

func (*Bind) frontend() {}

func (m *Bind) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindBind)
	buf = appendCString(buf, m.Portal)
	buf = appendCString(buf, m.Statement)
	buf = appendInt16(buf, int16(len(m.ParamFormats)))
	for _, f := range m.ParamFormats {
		buf = appendInt16(buf, int16(f))
	}
	buf = appendInt16(buf, int16(len(m.Params)))
	for _, p := range m.Params {
		buf = appendBytes32(buf, p)
	}
	buf = appendInt16(buf, int16(len(m.ResultFormats)))
	for _, f := range m.ResultFormats {
		buf = appendInt16(buf, int16(f))
	}
	return patchLength(buf, off), nil
}

// Close closes a prepared statement or portal by name.
type Close struct {
	Target DescribeTarget
	Name   string
}

func (*Close) frontend() {}

func (m *Close) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindClose)
	buf = append(buf, byte(m.Target))
	buf = appendCString(buf, m.Name)
	return patchLength(buf, off), nil
}

// CopyFail aborts an in-progress COPY FROM with a client-supplied reason,
// sent in place of the final CopyDone.
type CopyFail struct {
	Reason string
}

func (*CopyFail) frontend() {}

func (m *CopyFail) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindCopyFail)
	buf = appendCString(buf, m.Reason)
	return patchLength(buf, off), nil
}

// Describe requests a ParameterDescription/RowDescription (or
// NoData) for a statement or portal.
type Describe struct {
	Target DescribeTarget
	Name   string
}

func (*Describe) frontend() {}

func (m *Describe) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindDescribe)
	buf = append(buf, byte(m.Target))
	buf = appendCString(buf, m.Name)
	return patchLength(buf, off), nil
}

// Execute runs a bound portal, returning at most MaxRows rows (0 means all).
type Execute struct {
	Portal  string
	MaxRows int32
}

func (*Execute) frontend() {}

func (m *Execute) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindExecute)
	buf = appendCString(buf, m.Portal)
	buf = appendInt32(buf, m.MaxRows)
	return patchLength(buf, off), nil
}

// Flush requests the server send any pending output without a ReadyForQuery,
// used to batch Parse/Bind/Describe before a row stream without committing
// to Sync.
type Flush struct{}

func (*Flush) frontend() {}

func (m *Flush) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindFlush)
	return patchLength(buf, off), nil
}

// Parse prepares a query string as a named (or unnamed, "") statement, with
// an optional explicit parameter type hint list (0 entries means "infer
// everything").
type Parse struct {
	Statement  string
	Query      string
	ParamOIDs  []uint32
}

func (*Parse) frontend() {}

func (m *Parse) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindParse)
	buf = appendCString(buf, m.Statement)
	buf = appendCString(buf, m.Query)
	buf = appendInt16(buf, int16(len(m.ParamOIDs)))
	for _, o := range m.ParamOIDs {
		buf = appendUint32(buf, o)
	}
	return patchLength(buf, off), nil
}

// PasswordMessage carries a cleartext password, an MD5 digest, or a SASL
// response, depending on which AuthenticationRequest it answers.
type PasswordMessage struct {
	Payload []byte
}

func (*PasswordMessage) frontend() {}

func (m *PasswordMessage) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindPassword)
	buf = append(buf, m.Payload...)
	return patchLength(buf, off), nil
}

// Query runs a single SQL string through the simple query protocol; the
// server may split it into several statements internally and answer with
// one CommandComplete (or RowDescription/DataRow* /CommandComplete) per
// statement, then a single ReadyForQuery.
type Query struct {
	SQL string
}

func (*Query) frontend() {}

func (m *Query) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindQuery)
	buf = appendCString(buf, m.SQL)
	return patchLength(buf, off), nil
}

// Sync marks the end of an extended-query batch, causing the server to
// emit ReadyForQuery once everything queued ahead of it has been processed.
type Sync struct{}

func (*Sync) frontend() {}

func (m *Sync) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindSync)
	return patchLength(buf, off), nil
}

// Terminate closes the connection gracefully; no reply is expected.
type Terminate struct{}

func (*Terminate) frontend() {}

func (m *Terminate) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindTerminate)
	return patchLength(buf, off), nil
}
