package message

import "github.com/mickamy/pgwire/internal/wire"

// Field codes for the field table shared by ErrorResponse and
// NoticeResponse (protocol section "ErrorResponse (B)").
const (
	fieldSeverity         = 'S'
	fieldSeverityV        = 'V' // non-localized severity, protocol 3.0+
	fieldCode             = 'C'
	fieldMessage          = 'M'
	fieldDetail           = 'D'
	fieldHint             = 'H'
	fieldPosition         = 'P'
	fieldInternalPosition = 'p'
	fieldInternalQuery    = 'q'
	fieldWhere            = 'W'
	fieldSchema           = 's'
	fieldTable            = 't'
	fieldColumn           = 'c'
	fieldDataType         = 'd'
	fieldConstraint       = 'n'
	fieldFile             = 'F'
	fieldLine             = 'L'
	fieldRoutine          = 'R'
)

// Fields is the structured decode of an ErrorResponse/NoticeResponse field
// table: every field PostgreSQL may send, named rather than keyed by its
// single-byte wire code.
type Fields struct {
	Severity          string
	SeverityV         string
	Code              string
	Message           string
	Detail            string
	Hint              string
	Position          string
	InternalPosition  string
	InternalQuery     string
	Where             string
	SchemaName        string
	TableName         string
	ColumnName        string
	DataTypeName      string
	ConstraintName    string
	File              string
	Line              string
	Routine           string
}

func decodeFields(body []byte) (Fields, error) {
	var f Fields
	for len(body) > 0 && body[0] != 0 {
		code := body[0]
		body = body[1:]
		s, rest, err := wire.GetCString(body)
		if err != nil {
			return f, err
		}
		body = rest

		switch code {
		case fieldSeverity:
			f.Severity = s
		case fieldSeverityV:
			f.SeverityV = s
		case fieldCode:
			f.Code = s
		case fieldMessage:
			f.Message = s
		case fieldDetail:
			f.Detail = s
		case fieldHint:
			f.Hint = s
		case fieldPosition:
			f.Position = s
		case fieldInternalPosition:
			f.InternalPosition = s
		case fieldInternalQuery:
			f.InternalQuery = s
		case fieldWhere:
			f.Where = s
		case fieldSchema:
			f.SchemaName = s
		case fieldTable:
			f.TableName = s
		case fieldColumn:
			f.ColumnName = s
		case fieldDataType:
			f.DataTypeName = s
		case fieldConstraint:
			f.ConstraintName = s
		case fieldFile:
			f.File = s
		case fieldLine:
			f.Line = s
		case fieldRoutine:
			f.Routine = s
		}
	}
	return f, nil
}
