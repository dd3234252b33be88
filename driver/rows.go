package driver

import (
	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgoid"
	"github.com/cedardb/pgwire/pgtype"
)

// Rows is one statement's decoded result set, positioned before the first
// row until Next is first called.
type Rows struct {
	desc  *message.RowDescription
	raw   [][][]byte
	tag   string
	pos   int
	types *pgtype.Registry
}

func newRows(desc *message.RowDescription, raw [][][]byte, tag string, types *pgtype.Registry) *Rows {
	return &Rows{desc: desc, raw: raw, tag: tag, pos: -1, types: types}
}

// Tag is the command tag the server reported for this statement (e.g.
// "SELECT 3", "INSERT 0 1", "COPY 5").
func (rs *Rows) Tag() string { return rs.tag }

// Columns reports the result set's column descriptions; nil for a
// statement that returned no rows (e.g. an INSERT/UPDATE/DELETE).
func (rs *Rows) Columns() []message.FieldDescription {
	if rs.desc == nil {
		return nil
	}
	return rs.desc.Fields
}

// Next advances to the next row, reporting whether one exists.
func (rs *Rows) Next() bool {
	rs.pos++
	return rs.pos < len(rs.raw)
}

// Value decodes column i of the current row through the type registry,
// returning nil for SQL NULL.
func (rs *Rows) Value(i int) (any, error) {
	fd := rs.desc.Fields[i]
	raw := rs.raw[rs.pos][i]
	return rs.types.Decode(pgoid.OID(fd.DataTypeOID), pgtype.Format(fd.Format), raw)
}

// Values decodes every column of the current row.
func (rs *Rows) Values() ([]any, error) {
	out := make([]any, len(rs.desc.Fields))
	for i := range out {
		v, err := rs.Value(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
