// Package catalog implements introspection (C8): building pgtype.Codec
// values for OIDs the static registry has no entry for, by querying
// pg_type and its dependent catalogs over the same connection the
// unknown OID was seen on.
//
// A single parameterized query fetches pg_type rows for a set of OIDs;
// composite types additionally pull their pg_attribute columns, range
// types their pg_range subtype, and the OIDs that come back as still
// unresolved (an array's element, a domain's base, a composite field's
// type) feed back into the same resolution step until the whole
// dependency closure is registered. A composite's codec is registered
// with an empty field list the moment it is discovered, before its
// fields are resolved, so that a type cycle (A has a column of type B,
// B has a column of type A) ties off: the second type to be visited
// finds the first already present in the registry and links to it
// directly, and the first's own Fields are patched in once the
// recursion returns.
package catalog

import (
	"context"
	"fmt"

	"github.com/mickamy/pgwire/pgconn"
	"github.com/mickamy/pgwire/pgtype"
)

// Loader resolves OIDs against one connection's Registry, using a
// dedicated unnamed-statement query path (pgconn.Conn.QueryCatalog) so
// introspection never evicts an entry from the user's prepared
// statement cache.
type Loader struct {
	conn *pgconn.Conn
}

// New returns a Loader bound to conn.
func New(conn *pgconn.Conn) *Loader {
	return &Loader{conn: conn}
}

// Install builds a Loader for conn and wires it as the connection's
// unknown-OID resolver, so Query/Execute transparently introspect any
// OID the registry doesn't already know about.
func Install(conn *pgconn.Conn) *Loader {
	l := New(conn)
	conn.SetUnknownOIDResolver(l.Resolve)
	return l
}

// Resolve ensures every OID in oids (and everything it transitively
// depends on) has a codec registered on the connection's Registry. It
// is safe to call with OIDs that are already known; those are skipped.
func (l *Loader) Resolve(ctx context.Context, oids []uint32) error {
	return l.resolveAll(ctx, dedup(oids), map[uint32]bool{})
}

type typeRow struct {
	oid         uint32
	name        string
	kind        byte // pg_type.typtype: b, c, d, e, r, p
	elemOID     uint32
	baseOID     uint32
	relOID      uint32
	rangeSubOID uint32
}

const typesQuery = `
SELECT t.oid, t.typname::text, t.typtype, t.typelem, t.typbasetype, t.typrelid, r.rngsubtype
FROM pg_catalog.pg_type t
LEFT JOIN pg_catalog.pg_range r ON r.rangetypid = t.oid
WHERE t.oid = ANY($1::oid[])
`

const attributesQuery = `
SELECT a.attname, a.atttypid
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum
`

const enumLabelsQuery = `
SELECT enumlabel
FROM pg_catalog.pg_enum
WHERE enumtypid = $1
ORDER BY enumsortorder
`

// resolveAll fetches and resolves every oid in oids not already known to
// the registry and not already in-flight (visiting), recursing into
// whatever dependency OIDs each one needs.
func (l *Loader) resolveAll(ctx context.Context, oids []uint32, visiting map[uint32]bool) error {
	reg := l.conn.Registry()

	pending := make([]uint32, 0, len(oids))
	for _, oid := range oids {
		if oid == 0 || visiting[oid] {
			continue
		}
		if _, ok := reg.Lookup(oid); ok {
			continue
		}
		visiting[oid] = true
		pending = append(pending, oid)
	}
	if len(pending) == 0 {
		return nil
	}

	rows, err := l.fetchTypes(ctx, pending)
	if err != nil {
		return err
	}
	byOID := make(map[uint32]typeRow, len(rows))
	for _, r := range rows {
		byOID[r.oid] = r
	}

	for _, oid := range pending {
		row, ok := byOID[oid]
		if !ok {
			return fmt.Errorf("catalog: pg_type has no row for oid %d", oid)
		}
		if err := l.resolveOne(ctx, reg, row, visiting); err != nil {
			return fmt.Errorf("catalog: resolving oid %d (%s): %w", row.oid, row.name, err)
		}
	}
	return nil
}

func (l *Loader) resolveOne(ctx context.Context, reg *pgtype.Registry, row typeRow, visiting map[uint32]bool) error {
	if _, ok := reg.Lookup(row.oid); ok {
		return nil
	}

	switch {
	case row.kind == 'c' && row.relOID != 0:
		return l.resolveComposite(ctx, reg, row, visiting)
	case row.kind == 'r':
		if err := l.resolveAll(ctx, []uint32{row.rangeSubOID}, visiting); err != nil {
			return err
		}
		elem, ok := reg.Lookup(row.rangeSubOID)
		if !ok {
			return fmt.Errorf("range subtype %d unresolved", row.rangeSubOID)
		}
		reg.Register(pgtype.NewRangeCodec(row.oid, row.name, elem))
		return nil
	case row.kind == 'd':
		if err := l.resolveAll(ctx, []uint32{row.baseOID}, visiting); err != nil {
			return err
		}
		base, ok := reg.Lookup(row.baseOID)
		if !ok {
			return fmt.Errorf("domain base type %d unresolved", row.baseOID)
		}
		reg.Register(pgtype.NewDomainCodec(row.oid, row.name, base))
		return nil
	case row.kind == 'e':
		labels, err := l.fetchEnumLabels(ctx, row.oid)
		if err != nil {
			return err
		}
		reg.Register(pgtype.NewEnumCodec(row.oid, row.name, labels))
		return nil
	case row.elemOID != 0:
		// Arrays are typtype 'b' with typelem pointing at the element
		// type (the occasional pseudo-array like oidvector shares this
		// shape and decodes the same way).
		if err := l.resolveAll(ctx, []uint32{row.elemOID}, visiting); err != nil {
			return err
		}
		elem, ok := reg.Lookup(row.elemOID)
		if !ok {
			return fmt.Errorf("array element type %d unresolved", row.elemOID)
		}
		reg.Register(pgtype.NewArrayCodec(row.oid, row.name, row.elemOID, elem))
		return nil
	default:
		return fmt.Errorf("no codec strategy for typtype %q", string(row.kind))
	}
}

// resolveComposite registers a placeholder codec before recursing into
// the composite's own field types, so a field that refers back to this
// same OID (directly or through another composite) resolves to the
// placeholder instead of re-entering resolution. Fields is patched in
// once every field's codec exists.
func (l *Loader) resolveComposite(ctx context.Context, reg *pgtype.Registry, row typeRow, visiting map[uint32]bool) error {
	cc := pgtype.NewCompositeCodec(row.oid, row.name)
	reg.Register(cc)

	attrs, err := l.fetchAttributes(ctx, row.relOID)
	if err != nil {
		return err
	}

	attrOIDs := make([]uint32, len(attrs))
	for i, a := range attrs {
		attrOIDs[i] = a.oid
	}
	if err := l.resolveAll(ctx, attrOIDs, visiting); err != nil {
		return err
	}

	fields := make([]pgtype.CompositeField, len(attrs))
	for i, a := range attrs {
		codec, ok := reg.Lookup(a.oid)
		if !ok {
			return fmt.Errorf("composite field %q type %d unresolved", a.name, a.oid)
		}
		fields[i] = pgtype.CompositeField{Name: a.name, OID: a.oid, Codec: codec}
	}
	cc.Fields = fields
	return nil
}

func (l *Loader) fetchTypes(ctx context.Context, oids []uint32) ([]typeRow, error) {
	rows, err := l.conn.QueryCatalog(ctx, typesQuery, pgtype.OIDOIDArray, oidArray(oids))
	if err != nil {
		return nil, err
	}

	var out []typeRow
	for rows.Next() {
		r := rows.Row()
		row := typeRow{}
		row.oid, _ = r.Value(0).(uint32)
		row.name, _ = r.Value(1).(string)
		row.kind = asChar(r.Value(2))
		row.elemOID, _ = r.Value(3).(uint32)
		row.baseOID, _ = r.Value(4).(uint32)
		row.relOID, _ = r.Value(5).(uint32)
		row.rangeSubOID, _ = r.Value(6).(uint32)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type attrRow struct {
	name string
	oid  uint32
}

func (l *Loader) fetchAttributes(ctx context.Context, relOID uint32) ([]attrRow, error) {
	rows, err := l.conn.QueryCatalog(ctx, attributesQuery, pgtype.OIDOID, relOID)
	if err != nil {
		return nil, err
	}

	var out []attrRow
	for rows.Next() {
		r := rows.Row()
		name, _ := r.Value(0).(string)
		oid, _ := r.Value(1).(uint32)
		out = append(out, attrRow{name: name, oid: oid})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) fetchEnumLabels(ctx context.Context, enumOID uint32) ([]string, error) {
	rows, err := l.conn.QueryCatalog(ctx, enumLabelsQuery, pgtype.OIDOID, enumOID)
	if err != nil {
		return nil, err
	}

	var labels []string
	for rows.Next() {
		label, _ := rows.Row().Value(0).(string)
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

func asChar(v any) byte {
	switch c := v.(type) {
	case byte:
		return c
	case string:
		if len(c) > 0 {
			return c[0]
		}
	}
	return 0
}

func oidArray(oids []uint32) pgtype.Array {
	values := make([]any, len(oids))
	for i, oid := range oids {
		values[i] = oid
	}
	return pgtype.Array{
		Dims:   []pgtype.ArrayDim{{Length: int32(len(oids)), LowerBound: 1}},
		Values: values,
	}
}

func dedup(oids []uint32) []uint32 {
	seen := make(map[uint32]bool, len(oids))
	out := make([]uint32, 0, len(oids))
	for _, oid := range oids {
		if oid == 0 || seen[oid] {
			continue
		}
		seen[oid] = true
		out = append(out, oid)
	}
	return out
}
