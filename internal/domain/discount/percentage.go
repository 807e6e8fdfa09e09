package discount

import (
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Percentage is a discount percentage normalized from the string or numeric
// forms found in stored records and API payloads. A value that failed to
// parse is kept as an invalid percentage instead of an error, and every
// calculation treats it as "no discount".
//
// Values outside [0, 100] are valid percentages: bounds are a data entry
// concern.
type Percentage struct {
	value decimal.Decimal
	valid bool
}

// NewPercentage returns a valid percentage holding v.
func NewPercentage(v decimal.Decimal) Percentage {
	return Percentage{value: v, valid: true}
}

// ParsePercentage parses a decimal string such as "20" or " 12.5 ".
func ParsePercentage(s string) Percentage {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Percentage{}
	}
	return NewPercentage(v)
}

// PercentageFromFloat converts f, mapping NaN and infinities to an invalid
// percentage.
func PercentageFromFloat(f float64) Percentage {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Percentage{}
	}
	return NewPercentage(decimal.NewFromFloat(f))
}

// Valid reports whether the percentage holds a usable number.
func (p Percentage) Valid() bool { return p.valid }

// Decimal returns the numeric value and whether it is valid.
func (p Percentage) Decimal() (decimal.Decimal, bool) {
	return p.value, p.valid
}

// InBounds reports whether the percentage is valid and within [0, 100].
func (p Percentage) InBounds() bool {
	return p.valid && !p.value.IsNegative() && p.value.LessThanOrEqual(hundred)
}

func (p Percentage) String() string {
	if !p.valid {
		return "invalid"
	}
	return p.value.String()
}

// Encode writes the percentage as a JSON number, or null when invalid.
func (p Percentage) Encode(e *jx.Encoder) {
	if !p.valid {
		e.Null()
		return
	}
	e.Num(jx.Num(p.value.String()))
}

// Decode reads a percentage from a JSON string, number or null. Strings that
// do not parse produce an invalid percentage rather than an error.
func (p *Percentage) Decode(d *jx.Decoder) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		*p = ParsePercentage(s)
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		*p = ParsePercentage(n.String())
		return nil
	case jx.Null:
		*p = Percentage{}
		return d.Null()
	default:
		return errors.Errorf("unexpected percentage type %s", d.Next())
	}
}
