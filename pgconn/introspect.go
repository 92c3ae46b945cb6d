package pgconn

import (
	"context"
	"fmt"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgerr"
)

// QueryCatalog runs sql in the extended query protocol using the unnamed
// statement slot, deliberately bypassing the user statement cache (§4.8:
// introspection "must not use the user statement cache"). args are bound
// as a single parameter of paramOID, the shape every catalog query
// needs: an oid array for the pg_type lookup, or a single oid for the
// attribute and enum-label lookups.
func (c *Conn) QueryCatalog(ctx context.Context, sql string, paramOID uint32, args ...any) (*Rows, error) {
	if err := c.acquireBusy(); err != nil {
		return nil, err
	}

	paramFormats, paramValues, err := c.encodeParams([]uint32{paramOID}, args)
	if err != nil {
		c.releaseBusy()
		return nil, err
	}

	c.fe.Send(&message.Parse{Name: "", SQL: sql, ParamOIDs: []uint32{paramOID}})
	c.fe.Send(&message.Bind{
		DestinationPortal: "",
		PreparedStatement: "",
		ParamFormats:      paramFormats,
		ParamValues:       paramValues,
		ResultFormats:     []message.FormatCode{message.FormatBinary},
	})
	c.fe.Send(&message.Describe{ObjectType: message.DescribePortal, Name: ""})
	c.fe.Send(&message.Execute{Portal: "", MaxRows: 0})
	c.fe.Send(&message.Sync{})

	if err := c.fe.Flush(); err != nil {
		c.releaseBusy()
		return nil, &pgerr.ConnectionError{Op: "catalog query: flush", Err: err}
	}

	if err := c.awaitParseComplete(); err != nil {
		c.releaseBusy()
		return nil, err
	}
	if err := c.awaitBindComplete(); err != nil {
		c.releaseBusy()
		return nil, err
	}
	fields, err := c.awaitRowDescription()
	if err != nil {
		c.releaseBusy()
		return nil, err
	}

	return &Rows{conn: c, fields: fields}, nil
}

func (c *Conn) awaitParseComplete() error {
	msg, err := c.fe.Receive()
	if err != nil {
		return &pgerr.ConnectionError{Op: "catalog query: parse", Err: err}
	}
	switch m := msg.(type) {
	case *message.ParseComplete:
		return nil
	case *message.ErrorResponse:
		drainReadyForQuery(c)
		return pgerr.FromErrorResponse(m)
	default:
		return &pgerr.ConnectionError{Op: "catalog query: parse", Err: fmt.Errorf("unexpected message %T", m)}
	}
}
