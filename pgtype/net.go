package pgtype

import (
	"fmt"
	"math"
	"net"
	"net/netip"
)

// PGSQL_AF_INET / PGSQL_AF_INET6, from PostgreSQL's utils/inet.h. These
// are not the real socket.h AF_INET values; PostgreSQL defines its own
// so the wire format is endian- and platform-independent.
const (
	pgafInet  = 2
	pgafInet6 = pgafInet + 1
)

var inetCodec = &scalarCodec{
	oid: OIDInet, name: "inet", binary: true,
	encodeFn: encodeInetOrCidr(false),
	decodeFn: decodeInetOrCidr,
}

var cidrCodec = &scalarCodec{
	oid: OIDCIDR, name: "cidr", binary: true,
	encodeFn: encodeInetOrCidr(true),
	decodeFn: decodeInetOrCidr,
}

func encodeInetOrCidr(isCidr bool) func(any, []byte) ([]byte, error) {
	return func(v any, dst []byte) ([]byte, error) {
		p, ok := v.(netip.Prefix)
		if !ok {
			addr, ok := v.(netip.Addr)
			if !ok {
				return nil, fmt.Errorf("pgtype: inet/cidr: expected netip.Prefix or netip.Addr, got %T", v)
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}

		family := byte(pgafInet)
		addrBytes := p.Addr().As4()
		addrSlice := addrBytes[:]
		if p.Addr().Is6() {
			family = pgafInet6
			b16 := p.Addr().As16()
			addrSlice = b16[:]
		}

		dst = append(dst, family)
		dst = append(dst, byte(p.Bits()))
		if isCidr {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		dst = append(dst, byte(len(addrSlice)))
		dst = append(dst, addrSlice...)
		return dst, nil
	}
}

func decodeInetOrCidr(src []byte) (any, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("pgtype: inet/cidr: short body")
	}
	family, bits, _, nb := src[0], src[1], src[2], int(src[3])
	addrBytes := src[4:]
	if len(addrBytes) != nb {
		return nil, fmt.Errorf("pgtype: inet/cidr: address length mismatch: header %d, body %d", nb, len(addrBytes))
	}

	var addr netip.Addr
	switch family {
	case pgafInet:
		if nb != 4 {
			return nil, fmt.Errorf("pgtype: inet/cidr: inet family with %d address bytes", nb)
		}
		addr = netip.AddrFrom4([4]byte(addrBytes))
	case pgafInet6:
		if nb != 16 {
			return nil, fmt.Errorf("pgtype: inet/cidr: inet6 family with %d address bytes", nb)
		}
		addr = netip.AddrFrom16([16]byte(addrBytes))
	default:
		return nil, fmt.Errorf("pgtype: inet/cidr: unknown address family %d", family)
	}

	return netip.PrefixFrom(addr, int(bits)), nil
}

var macaddrCodec = &scalarCodec{
	oid: OIDMacaddr, name: "macaddr", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		hw, ok := v.(net.HardwareAddr)
		if !ok {
			return nil, fmt.Errorf("pgtype: macaddr: expected net.HardwareAddr, got %T", v)
		}
		if len(hw) != 6 {
			return nil, fmt.Errorf("pgtype: macaddr: expected 6 bytes, got %d", len(hw))
		}
		return append(dst, hw...), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 6 {
			return nil, fmt.Errorf("pgtype: macaddr: invalid length %d", len(src))
		}
		return net.HardwareAddr(append([]byte(nil), src...)), nil
	},
}

// Point is a PostgreSQL "point" value: two float8 coordinates.
type Point struct{ X, Y float64 }

var pointCodec = &scalarCodec{
	oid: OIDPoint, name: "point", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		p, ok := v.(Point)
		if !ok {
			return nil, fmt.Errorf("pgtype: point: expected pgtype.Point, got %T", v)
		}
		dst = pgioAppendUint64(dst, math.Float64bits(p.X))
		dst = pgioAppendUint64(dst, math.Float64bits(p.Y))
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 16 {
			return nil, fmt.Errorf("pgtype: point: invalid length %d", len(src))
		}
		x := math.Float64frombits(beUint64(src[0:8]))
		y := math.Float64frombits(beUint64(src[8:16]))
		return Point{X: x, Y: y}, nil
	},
}

// Circle is a PostgreSQL "circle" value: a center point and a radius.
type Circle struct {
	Center Point
	Radius float64
}

var circleCodec = &scalarCodec{
	oid: OIDCircle, name: "circle", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		c, ok := v.(Circle)
		if !ok {
			return nil, fmt.Errorf("pgtype: circle: expected pgtype.Circle, got %T", v)
		}
		dst = pgioAppendUint64(dst, math.Float64bits(c.Center.X))
		dst = pgioAppendUint64(dst, math.Float64bits(c.Center.Y))
		dst = pgioAppendUint64(dst, math.Float64bits(c.Radius))
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 24 {
			return nil, fmt.Errorf("pgtype: circle: invalid length %d", len(src))
		}
		x := math.Float64frombits(beUint64(src[0:8]))
		y := math.Float64frombits(beUint64(src[8:16]))
		r := math.Float64frombits(beUint64(src[16:24]))
		return Circle{Center: Point{X: x, Y: y}, Radius: r}, nil
	},
}

// Path is a PostgreSQL "path" value: an ordered list of points, either
// open or closed (a polygon-like path).
type Path struct {
	Closed bool
	Points []Point
}

var pathCodec = &scalarCodec{
	oid: OIDPath, name: "path", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		p, ok := v.(Path)
		if !ok {
			return nil, fmt.Errorf("pgtype: path: expected pgtype.Path, got %T", v)
		}
		if p.Closed {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		dst = pgioAppendInt32(dst, int32(len(p.Points)))
		for _, pt := range p.Points {
			dst = pgioAppendUint64(dst, math.Float64bits(pt.X))
			dst = pgioAppendUint64(dst, math.Float64bits(pt.Y))
		}
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) < 5 {
			return nil, fmt.Errorf("pgtype: path: short body")
		}
		closed := src[0] != 0
		npts := int(int32(beUint32(src[1:5])))
		src = src[5:]
		if len(src) != npts*16 {
			return nil, fmt.Errorf("pgtype: path: point count mismatch")
		}
		points := make([]Point, npts)
		for i := 0; i < npts; i++ {
			x := math.Float64frombits(beUint64(src[i*16 : i*16+8]))
			y := math.Float64frombits(beUint64(src[i*16+8 : i*16+16]))
			points[i] = Point{X: x, Y: y}
		}
		return Path{Closed: closed, Points: points}, nil
	},
}

// Polygon is a PostgreSQL "polygon" value: an implicitly-closed ring of
// points with no separate closed flag on the wire.
type Polygon struct {
	Points []Point
}

var polygonCodec = &scalarCodec{
	oid: OIDPolygon, name: "polygon", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		p, ok := v.(Polygon)
		if !ok {
			return nil, fmt.Errorf("pgtype: polygon: expected pgtype.Polygon, got %T", v)
		}
		dst = pgioAppendInt32(dst, int32(len(p.Points)))
		for _, pt := range p.Points {
			dst = pgioAppendUint64(dst, math.Float64bits(pt.X))
			dst = pgioAppendUint64(dst, math.Float64bits(pt.Y))
		}
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) < 4 {
			return nil, fmt.Errorf("pgtype: polygon: short body")
		}
		npts := int(int32(beUint32(src[0:4])))
		src = src[4:]
		if len(src) != npts*16 {
			return nil, fmt.Errorf("pgtype: polygon: point count mismatch")
		}
		points := make([]Point, npts)
		for i := 0; i < npts; i++ {
			x := math.Float64frombits(beUint64(src[i*16 : i*16+8]))
			y := math.Float64frombits(beUint64(src[i*16+8 : i*16+16]))
			points[i] = Point{X: x, Y: y}
		}
		return Polygon{Points: points}, nil
	},
}

// Lseg is a PostgreSQL "lseg" value: a line segment between two points.
type Lseg struct{ P1, P2 Point }

var lsegCodec = &scalarCodec{
	oid: OIDLseg, name: "lseg", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		l, ok := v.(Lseg)
		if !ok {
			return nil, fmt.Errorf("pgtype: lseg: expected pgtype.Lseg, got %T", v)
		}
		dst = pgioAppendUint64(dst, math.Float64bits(l.P1.X))
		dst = pgioAppendUint64(dst, math.Float64bits(l.P1.Y))
		dst = pgioAppendUint64(dst, math.Float64bits(l.P2.X))
		dst = pgioAppendUint64(dst, math.Float64bits(l.P2.Y))
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 32 {
			return nil, fmt.Errorf("pgtype: lseg: invalid length %d", len(src))
		}
		x1 := math.Float64frombits(beUint64(src[0:8]))
		y1 := math.Float64frombits(beUint64(src[8:16]))
		x2 := math.Float64frombits(beUint64(src[16:24]))
		y2 := math.Float64frombits(beUint64(src[24:32]))
		return Lseg{P1: Point{X: x1, Y: y1}, P2: Point{X: x2, Y: y2}}, nil
	},
}

// Box is a PostgreSQL "box" value: the rectangle spanning two corner
// points. PostgreSQL always normalizes the wire encoding to
// (high corner, low corner) regardless of construction order.
type Box struct{ High, Low Point }

var boxCodec = &scalarCodec{
	oid: OIDBox, name: "box", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		b, ok := v.(Box)
		if !ok {
			return nil, fmt.Errorf("pgtype: box: expected pgtype.Box, got %T", v)
		}
		dst = pgioAppendUint64(dst, math.Float64bits(b.High.X))
		dst = pgioAppendUint64(dst, math.Float64bits(b.High.Y))
		dst = pgioAppendUint64(dst, math.Float64bits(b.Low.X))
		dst = pgioAppendUint64(dst, math.Float64bits(b.Low.Y))
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 32 {
			return nil, fmt.Errorf("pgtype: box: invalid length %d", len(src))
		}
		hx := math.Float64frombits(beUint64(src[0:8]))
		hy := math.Float64frombits(beUint64(src[8:16]))
		lx := math.Float64frombits(beUint64(src[16:24]))
		ly := math.Float64frombits(beUint64(src[24:32]))
		return Box{High: Point{X: hx, Y: hy}, Low: Point{X: lx, Y: ly}}, nil
	},
}

// Line is a PostgreSQL "line" value in general form: Ax + By + C = 0.
type Line struct{ A, B, C float64 }

var lineCodec = &scalarCodec{
	oid: OIDLine, name: "line", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		l, ok := v.(Line)
		if !ok {
			return nil, fmt.Errorf("pgtype: line: expected pgtype.Line, got %T", v)
		}
		dst = pgioAppendUint64(dst, math.Float64bits(l.A))
		dst = pgioAppendUint64(dst, math.Float64bits(l.B))
		dst = pgioAppendUint64(dst, math.Float64bits(l.C))
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 24 {
			return nil, fmt.Errorf("pgtype: line: invalid length %d", len(src))
		}
		a := math.Float64frombits(beUint64(src[0:8]))
		b := math.Float64frombits(beUint64(src[8:16]))
		c := math.Float64frombits(beUint64(src[16:24]))
		return Line{A: a, B: b, C: c}, nil
	},
}
