package pgtype

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/cedardb/pgwire/pgoid"
)

// numeric binary wire format (§4.3): int16 ndigits, int16 weight, uint16
// sign, uint16 dscale, then ndigits base-10000 digit groups. Each digit
// group occupies exactly 4 decimal digit positions; weight is the power of
// 10000 the first group is multiplied by.
const (
	numericPosSign = 0x0000
	numericNegSign = 0x4000
	numericNaNSign = 0xC000
)

func numericCodec() *Codec {
	return &Codec{
		OID:          pgoid.Numeric,
		Name:         "numeric",
		EncodeText:   encodeNumericText,
		DecodeText:   decodeNumericText,
		EncodeBinary: encodeNumericBinary,
		DecodeBinary: decodeNumericBinary,
	}
}

func asDecimal(v any) (*apd.Decimal, error) {
	switch d := v.(type) {
	case *apd.Decimal:
		return d, nil
	case apd.Decimal:
		return &d, nil
	default:
		return nil, fmt.Errorf("expected *apd.Decimal, got %T", v)
	}
}

func encodeNumericText(v any) (string, error) {
	d, err := asDecimal(v)
	if err != nil {
		return "", err
	}
	return d.Text('f'), nil
}

func decodeNumericText(src string) (any, error) {
	d, _, err := apd.NewFromString(src)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func encodeNumericBinary(v any) ([]byte, error) {
	d, err := asDecimal(v)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 8)
	if d.Form == apd.NaN || d.Form == apd.NaNSignaling {
		binary.BigEndian.PutUint16(buf[4:], numericNaNSign)
		binary.BigEndian.PutUint16(buf[0:], 0)
		binary.BigEndian.PutUint16(buf[2:], 0)
		return buf, nil
	}

	coeff := new(big.Int).Abs(&d.Coeff)
	digits := coeff.String()
	if coeff.Sign() == 0 {
		digits = "0"
	}
	exponent := int(d.Exponent)

	var intPart, fracPart string
	if exponent >= 0 {
		intPart = digits + strings.Repeat("0", exponent)
		fracPart = ""
	} else {
		fracLen := -exponent
		if len(digits) <= fracLen {
			digits = strings.Repeat("0", fracLen-len(digits)+1) + digits
		}
		intPart = digits[:len(digits)-fracLen]
		fracPart = digits[len(digits)-fracLen:]
	}
	dscale := len(fracPart)

	leftPad := (4 - len(intPart)%4) % 4
	rightPad := (4 - len(fracPart)%4) % 4
	intPart = strings.Repeat("0", leftPad) + intPart
	fracPart = fracPart + strings.Repeat("0", rightPad)

	weight := len(intPart)/4 - 1
	full := intPart + fracPart

	groups := make([]uint16, 0, len(full)/4)
	for i := 0; i < len(full); i += 4 {
		var g int
		fmt.Sscanf(full[i:i+4], "%d", &g)
		groups = append(groups, uint16(g))
	}

	// Trim leading all-zero groups from the integer part (weight drops by
	// one per group dropped) and trailing all-zero groups from the
	// fractional part, matching how postgres canonicalizes the wire form.
	for len(groups) > 0 && groups[0] == 0 && weight >= 0 {
		groups = groups[1:]
		weight--
	}
	for len(groups) > 0 && groups[len(groups)-1] == 0 {
		groups = groups[:len(groups)-1]
	}

	sign := uint16(numericPosSign)
	if d.Negative && coeff.Sign() != 0 {
		sign = numericNegSign
	}

	out := make([]byte, 8+2*len(groups))
	binary.BigEndian.PutUint16(out[0:], uint16(len(groups)))
	binary.BigEndian.PutUint16(out[2:], uint16(int16(weight)))
	binary.BigEndian.PutUint16(out[4:], sign)
	binary.BigEndian.PutUint16(out[6:], uint16(dscale))
	for i, g := range groups {
		binary.BigEndian.PutUint16(out[8+2*i:], g)
	}
	return out, nil
}

func decodeNumericBinary(src []byte) (any, error) {
	if len(src) < 8 {
		return nil, fmt.Errorf("numeric binary payload too short: %d bytes", len(src))
	}
	ndigits := int(binary.BigEndian.Uint16(src[0:]))
	weight := int(int16(binary.BigEndian.Uint16(src[2:])))
	sign := binary.BigEndian.Uint16(src[4:])
	dscale := int(binary.BigEndian.Uint16(src[6:]))
	if len(src) != 8+2*ndigits {
		return nil, fmt.Errorf("numeric binary payload length mismatch for %d digits", ndigits)
	}

	if sign == numericNaNSign {
		d := &apd.Decimal{Form: apd.NaN}
		return d, nil
	}
	if sign != numericPosSign && sign != numericNegSign {
		return nil, fmt.Errorf("invalid numeric sign field 0x%x", sign)
	}

	var sb strings.Builder
	for i := 0; i < ndigits; i++ {
		g := binary.BigEndian.Uint16(src[8+2*i:])
		if g > 9999 {
			return nil, fmt.Errorf("digit group %d out of range: %d", i, g)
		}
		fmt.Fprintf(&sb, "%04d", g)
	}
	full := sb.String()

	l := len(full)
	exponent := 4 * (weight - ndigits + 1)
	pointPos := l + exponent

	var intPart, fracPart string
	switch {
	case ndigits == 0:
		intPart, fracPart = "0", ""
	case pointPos <= 0:
		intPart = "0"
		fracPart = strings.Repeat("0", -pointPos) + full
	case pointPos >= l:
		intPart = full + strings.Repeat("0", pointPos-l)
		fracPart = ""
	default:
		intPart = full[:pointPos]
		fracPart = full[pointPos:]
	}

	// Pad or trim the fractional part to the declared display scale;
	// postgres's dscale may ask for more digits than the stored groups
	// imply (trailing zeros were trimmed on the wire).
	if len(fracPart) < dscale {
		fracPart = fracPart + strings.Repeat("0", dscale-len(fracPart))
	} else if len(fracPart) > dscale {
		fracPart = fracPart[:dscale]
	}

	text := intPart
	if fracPart != "" {
		text += "." + fracPart
	}
	if sign == numericNegSign {
		text = "-" + text
	}

	d, _, err := apd.NewFromString(text)
	if err != nil {
		return nil, err
	}
	return d, nil
}
