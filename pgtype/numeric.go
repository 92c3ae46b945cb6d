package pgtype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// numeric sign markers, per PostgreSQL's numeric.c.
const (
	numericPositive = 0x0000
	numericNegative = 0x4000
	numericNaN      = 0xC000
)

// numericCodec decodes PostgreSQL's "numeric" binary format — base-10000
// digit groups plus a weight, sign, and display scale — to an
// arbitrary-precision github.com/shopspring/decimal.Decimal, grounded on
// the ha1tch-aulsql sibling example (which depends on shopspring/decimal
// for the same purpose: the teacher repository itself has no numeric
// decoder to draw from).
var numericCodec = &scalarCodec{
	oid: OIDNumeric, name: "numeric", binary: true,
	encodeFn: encodeNumeric,
	decodeFn: decodeNumeric,
}

func decodeNumeric(src []byte) (any, error) {
	if len(src) < 8 {
		return nil, fmt.Errorf("pgtype: numeric: short body")
	}
	ndigits := int(beUint16(src[0:2]))
	weight := int(int16(beUint16(src[2:4])))
	sign := beUint16(src[4:6])
	dscale := int(beUint16(src[6:8]))
	src = src[8:]

	if sign == numericNaN {
		return nil, fmt.Errorf("pgtype: numeric: NaN is not representable")
	}
	if len(src) < ndigits*2 {
		return nil, fmt.Errorf("pgtype: numeric: short digit array")
	}

	if ndigits == 0 {
		return decimal.New(0, int32(-dscale)), nil
	}

	digits := make([]int, ndigits)
	for i := 0; i < ndigits; i++ {
		digits[i] = int(beUint16(src[i*2 : i*2+2]))
	}

	var sb strings.Builder
	for i, d := range digits {
		if i == 0 {
			sb.WriteString(strconv.Itoa(d))
		} else {
			fmt.Fprintf(&sb, "%04d", d)
		}
	}
	// digitStr represents an integer whose implied decimal point sits
	// (weight+1) groups (of 4 digits) from the left of the *first* group.
	// Since the first group isn't zero-padded, recompute its true width.
	firstGroupWidth := len(strconv.Itoa(digits[0]))
	totalWidth := firstGroupWidth + 4*(ndigits-1)
	pointPos := firstGroupWidth + 4*weight // digits before the decimal point

	digitStr := sb.String()
	var intPart, fracPart string
	switch {
	case pointPos <= 0:
		intPart = "0"
		fracPart = strings.Repeat("0", -pointPos) + digitStr
	case pointPos >= totalWidth:
		intPart = digitStr + strings.Repeat("0", pointPos-totalWidth)
		fracPart = ""
	default:
		intPart = digitStr[:pointPos]
		fracPart = digitStr[pointPos:]
	}

	if len(fracPart) < dscale {
		fracPart += strings.Repeat("0", dscale-len(fracPart))
	} else if len(fracPart) > dscale {
		fracPart = fracPart[:dscale]
	}

	numStr := intPart
	if dscale > 0 {
		numStr += "." + fracPart
	}
	if sign == numericNegative {
		numStr = "-" + numStr
	}

	d, err := decimal.NewFromString(numStr)
	if err != nil {
		return nil, fmt.Errorf("pgtype: numeric: %w", err)
	}
	return d, nil
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("pgtype: numeric: %w", err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("pgtype: numeric: expected decimal.Decimal, got %T", v)
	}
}

func encodeNumeric(v any, dst []byte) ([]byte, error) {
	d, err := asDecimal(v)
	if err != nil {
		return nil, err
	}

	sign := uint16(numericPositive)
	abs := d
	if d.Sign() < 0 {
		sign = numericNegative
		abs = d.Neg()
	}

	exponent := int(abs.Exponent()) // value = coefficient * 10^exponent
	coeffStr := abs.Coefficient().String()
	if coeffStr == "0" {
		dscale := 0
		if exponent < 0 {
			dscale = -exponent
		}
		dst = pgioAppendUint16(dst, 0)
		dst = pgioAppendInt16(dst, 0)
		dst = pgioAppendUint16(dst, numericPositive)
		dst = pgioAppendUint16(dst, uint16(dscale))
		return dst, nil
	}

	var intDigits, fracDigits string
	switch {
	case exponent >= 0:
		intDigits = coeffStr + strings.Repeat("0", exponent)
		fracDigits = ""
	case -exponent >= len(coeffStr):
		intDigits = "0"
		fracDigits = strings.Repeat("0", -exponent-len(coeffStr)) + coeffStr
	default:
		split := len(coeffStr) + exponent
		intDigits = coeffStr[:split]
		fracDigits = coeffStr[split:]
	}
	dscale := len(fracDigits)

	padInt := (4 - len(intDigits)%4) % 4
	paddedInt := strings.Repeat("0", padInt) + intDigits
	padFrac := (4 - len(fracDigits)%4) % 4
	paddedFrac := fracDigits + strings.Repeat("0", padFrac)

	numIntGroups := len(paddedInt) / 4
	numFracGroups := len(paddedFrac) / 4
	weight := numIntGroups - 1

	digits := make([]uint16, 0, numIntGroups+numFracGroups)
	for i := 0; i < numIntGroups; i++ {
		g, _ := strconv.Atoi(paddedInt[i*4 : i*4+4])
		digits = append(digits, uint16(g))
	}
	for i := 0; i < numFracGroups; i++ {
		g, _ := strconv.Atoi(paddedFrac[i*4 : i*4+4])
		digits = append(digits, uint16(g))
	}

	// Trim trailing all-zero groups; PostgreSQL's own encoder never emits
	// them and ndigits should reflect only significant groups.
	for len(digits) > 0 && digits[len(digits)-1] == 0 && len(digits) > numIntGroups {
		digits = digits[:len(digits)-1]
	}

	dst = pgioAppendUint16(dst, uint16(len(digits)))
	dst = pgioAppendInt16(dst, int16(weight))
	dst = pgioAppendUint16(dst, sign)
	dst = pgioAppendUint16(dst, uint16(dscale))
	for _, g := range digits {
		dst = pgioAppendUint16(dst, g)
	}
	return dst, nil
}
