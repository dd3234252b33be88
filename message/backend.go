package message

import "github.com/cedardb/pgwire/pgerr"

// AuthenticationRequest is the decoded form of every 'R' message. AuthKind
// distinguishes AuthenticationOk from the various challenge types; MD5
// carries a Salt and the SASL/GSS continuation kinds carry Data. Ok and
// SASLFinal need no reply, Cleartext and MD5 are answered directly, and the
// rest are delegated to an auth.Plugin.
type AuthenticationRequest struct {
	AuthKind AuthenticationKind
	Salt     [4]byte // MD5 only
	Data     []byte  // SASL/GSSAPI continuation payload, if any
}

func (*AuthenticationRequest) backend() {}

// AuthenticationKind is the int32 subtype carried by every AuthenticationXxx
// message (§4.2).
type AuthenticationKind int32

const (
	AuthOk                AuthenticationKind = 0
	AuthKerberosV5        AuthenticationKind = 2
	AuthCleartextPassword AuthenticationKind = 3
	AuthMD5Password       AuthenticationKind = 5
	AuthSCMCredential     AuthenticationKind = 6
	AuthGSS               AuthenticationKind = 7
	AuthGSSContinue       AuthenticationKind = 8
	AuthSSPI              AuthenticationKind = 9
	AuthSASL              AuthenticationKind = 10
	AuthSASLContinue      AuthenticationKind = 11
	AuthSASLFinal         AuthenticationKind = 12
)

func decodeAuthentication(r *reader) (*AuthenticationRequest, error) {
	kind, err := r.int32()
	if err != nil {
		return nil, err
	}
	req := &AuthenticationRequest{AuthKind: AuthenticationKind(kind)}
	switch req.AuthKind {
	case AuthMD5Password:
		salt, err := r.bytesN(4)
		if err != nil {
			return nil, err
		}
		copy(req.Salt[:], salt)
	case AuthGSSContinue, AuthSASL, AuthSASLContinue, AuthSASLFinal:
		req.Data = r.rest()
	}
	return req, nil
}

// BackendKeyData carries the pid/secret key used by a later CancelRequest.
type BackendKeyData struct {
	ProcessID int32
	SecretKey int32
}

func (*BackendKeyData) backend() {}

func decodeBackendKeyData(r *reader) (*BackendKeyData, error) {
	pid, err := r.int32()
	if err != nil {
		return nil, err
	}
	secret, err := r.int32()
	if err != nil {
		return nil, err
	}
	return &BackendKeyData{ProcessID: pid, SecretKey: secret}, r.done()
}

type BindComplete struct{}

func (*BindComplete) backend() {}

type CloseComplete struct{}

func (*CloseComplete) backend() {}

// CommandComplete carries the server's free-form completion tag, which the
// copyproto and simple-query layers parse for an affected-row count.
type CommandComplete struct {
	Tag string
}

func (*CommandComplete) backend() {}

func decodeCommandComplete(r *reader) (*CommandComplete, error) {
	tag, err := r.cstring()
	if err != nil {
		return nil, err
	}
	return &CommandComplete{Tag: tag}, r.done()
}

// CopyData carries one chunk of COPY payload, in either direction.
type CopyData struct {
	Data []byte
}

func (*CopyData) backend()  {}
func (*CopyData) frontend() {}

func (m *CopyData) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindCopyDataFE)
	buf = append(buf, m.Data...)
	return patchLength(buf, off), nil
}

type CopyDone struct{}

func (*CopyDone) backend()  {}
func (*CopyDone) frontend() {}

func (m *CopyDone) Encode(buf []byte) ([]byte, error) {
	buf, off := appendHeader(buf, KindCopyDoneFE)
	return patchLength(buf, off), nil
}

// CopyFormat is the Overall / per-column format carried by CopyInResponse and
// CopyOutResponse (0 = text, 1 = binary).
type CopyFormat int8

const (
	CopyFormatText   CopyFormat = 0
	CopyFormatBinary CopyFormat = 1
)

// CopyResponse is shared by CopyInResponse (In=true) and CopyOutResponse
// (In=false); both have the identical payload shape.
type CopyResponse struct {
	In             bool
	OverallFormat  CopyFormat
	ColumnFormats  []CopyFormat
}

func (*CopyResponse) backend() {}

func decodeCopyResponse(r *reader, in bool) (*CopyResponse, error) {
	format, err := r.byte()
	if err != nil {
		return nil, err
	}
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	cols := make([]CopyFormat, n)
	for i := range cols {
		f, err := r.int16()
		if err != nil {
			return nil, err
		}
		cols[i] = CopyFormat(f)
	}
	return &CopyResponse{In: in, OverallFormat: CopyFormat(format), ColumnFormats: cols}, r.done()
}

// FieldFormat is the text/binary format tag carried per-column by
// RowDescription and per-parameter by Bind.
type FieldFormat int16

const (
	FormatText   FieldFormat = 0
	FormatBinary FieldFormat = 1
)

// DataRow is one row of query results; a nil element means SQL NULL.
type DataRow struct {
	Values [][]byte
}

func (*DataRow) backend() {}

func decodeDataRow(r *reader) (*DataRow, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	vals := make([][]byte, n)
	for i := range vals {
		v, err := r.bytes32()
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return &DataRow{Values: vals}, r.done()
}

type EmptyQueryResponse struct{}

func (*EmptyQueryResponse) backend() {}

// ErrorResponse and NoticeResponse share the field-code/value list shape
// (§4.2, §7); ErrorOrNotice decodes both, keyed by the fields PostgreSQL
// actually sends (severity, sqlstate, message, detail, hint, position,
// internal query/position, where, routine).
type ErrorOrNotice struct {
	IsError  bool
	Severity string
	SQLState string
	Message  string
	Detail   string
	Hint     string
	Position int32
	InternalQuery string
	InternalPos   int32
	Where    string
	Routine  string
	Raw      map[byte]string
}

func (*ErrorOrNotice) backend() {}

const (
	fieldSeverity      = 'S'
	fieldSeverityV     = 'V'
	fieldSQLState      = 'C'
	fieldMessage       = 'M'
	fieldDetail        = 'D'
	fieldHint          = 'H'
	fieldPosition      = 'P'
	fieldInternalQuery = 'q'
	fieldInternalPos   = 'p'
	fieldWhere         = 'W'
	fieldRoutine       = 'R'
)

func decodeErrorOrNotice(r *reader, isError bool) (*ErrorOrNotice, error) {
	en := &ErrorOrNotice{IsError: isError, Raw: map[byte]string{}}
	for {
		code, err := r.byte()
		if err != nil {
			return nil, err
		}
		if code == 0 {
			break
		}
		val, err := r.cstring()
		if err != nil {
			return nil, err
		}
		en.Raw[code] = val
		switch code {
		case fieldSeverity:
			if en.Severity == "" {
				en.Severity = val
			}
		case fieldSeverityV:
			en.Severity = val
		case fieldSQLState:
			en.SQLState = val
		case fieldMessage:
			en.Message = val
		case fieldDetail:
			en.Detail = val
		case fieldHint:
			en.Hint = val
		case fieldWhere:
			en.Where = val
		case fieldRoutine:
			en.Routine = val
		case fieldInternalQuery:
			en.InternalQuery = val
		}
	}
	if p, ok := en.Raw[fieldPosition]; ok {
		en.Position = parsePosition(p)
	}
	if p, ok := en.Raw[fieldInternalPos]; ok {
		en.InternalPos = parsePosition(p)
	}
	return en, r.done()
}

func parsePosition(s string) int32 {
	var n int32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int32(c-'0')
	}
	return n
}

// ToServerError converts a decoded ErrorResponse into the classified error
// type callers match against with errors.As.
func (en *ErrorOrNotice) ToServerError() *pgerr.ServerError {
	return &pgerr.ServerError{
		Severity:      en.Severity,
		SQLState:      en.SQLState,
		Message:       en.Message,
		Detail:        en.Detail,
		Hint:          en.Hint,
		Position:      en.Position,
		InternalQuery: en.InternalQuery,
		InternalPos:   en.InternalPos,
		Where:         en.Where,
		Routine:       en.Routine,
		Raw:           en.Raw,
	}
}

type NoData struct{}

func (*NoData) backend() {}

// ParameterDescription lists the inferred OID of each placeholder in a
// Parse'd statement.
type ParameterDescription struct {
	OIDs []uint32
}

func (*ParameterDescription) backend() {}

func decodeParameterDescription(r *reader) (*ParameterDescription, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	oids := make([]uint32, n)
	for i := range oids {
		o, err := r.uint32()
		if err != nil {
			return nil, err
		}
		oids[i] = o
	}
	return &ParameterDescription{OIDs: oids}, r.done()
}

// ParameterStatus announces a GUC value (server_version, client_encoding,
// TimeZone, ...), both at startup and whenever it later changes.
type ParameterStatus struct {
	Name  string
	Value string
}

func (*ParameterStatus) backend() {}

func decodeParameterStatus(r *reader) (*ParameterStatus, error) {
	name, err := r.cstring()
	if err != nil {
		return nil, err
	}
	val, err := r.cstring()
	if err != nil {
		return nil, err
	}
	return &ParameterStatus{Name: name, Value: val}, r.done()
}

type ParseComplete struct{}

func (*ParseComplete) backend() {}

type PortalSuspended struct{}

func (*PortalSuspended) backend() {}

// TransactionStatus is ReadyForQuery's single payload byte (§4.4 state
// machine, transaction status tracking).
type TransactionStatus byte

const (
	TxIdle           TransactionStatus = 'I'
	TxInBlock        TransactionStatus = 'T'
	TxInFailedBlock  TransactionStatus = 'E'
)

type ReadyForQuery struct {
	Status TransactionStatus
}

func (*ReadyForQuery) backend() {}

func decodeReadyForQuery(r *reader) (*ReadyForQuery, error) {
	b, err := r.byte()
	if err != nil {
		return nil, err
	}
	return &ReadyForQuery{Status: TransactionStatus(b)}, r.done()
}

// FieldDescription is one column of a RowDescription.
type FieldDescription struct {
	Name         string
	TableOID     uint32
	ColumnAttNum int16
	DataTypeOID  uint32
	DataTypeSize int16
	TypeModifier int32
	Format       FieldFormat
}

type RowDescription struct {
	Fields []FieldDescription
}

func (*RowDescription) backend() {}

func decodeRowDescription(r *reader) (*RowDescription, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescription, n)
	for i := range fields {
		name, err := r.cstring()
		if err != nil {
			return nil, err
		}
		tableOID, err := r.uint32()
		if err != nil {
			return nil, err
		}
		attNum, err := r.int16()
		if err != nil {
			return nil, err
		}
		typeOID, err := r.uint32()
		if err != nil {
			return nil, err
		}
		typeSize, err := r.int16()
		if err != nil {
			return nil, err
		}
		typeMod, err := r.int32()
		if err != nil {
			return nil, err
		}
		format, err := r.int16()
		if err != nil {
			return nil, err
		}
		fields[i] = FieldDescription{
			Name:         name,
			TableOID:     tableOID,
			ColumnAttNum: attNum,
			DataTypeOID:  typeOID,
			DataTypeSize: typeSize,
			TypeModifier: typeMod,
			Format:       FieldFormat(format),
		}
	}
	return &RowDescription{Fields: fields}, r.done()
}
