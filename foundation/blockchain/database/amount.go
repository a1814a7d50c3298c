package database

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the number of fractional digits an amount carries.
const Decimals = 8

var unitsPerCoin = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Amount is an immutable arbitrary precision number of coins with Decimals
// fractional digits. The zero value is zero. Amounts can be negative so
// callers can detect an underflow, but the ledger never stores one.
type Amount struct {
	n *big.Int
}

// NewAmount constructs an amount from a number of the smallest units.
func NewAmount(units int64) Amount {
	return Amount{n: big.NewInt(units)}
}

// Coins constructs an amount from a whole number of coins.
func Coins(coins int64) Amount {
	n := big.NewInt(coins)
	return Amount{n: n.Mul(n, unitsPerCoin)}
}

// ParseAmount parses a decimal string like "12", "-3.5" or "0.00000001".
func ParseAmount(s string) (Amount, error) {
	raw := s
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > Decimals || strings.ContainsAny(whole+frac, "+-") {
		return Amount{}, fmt.Errorf("invalid amount %q", raw)
	}

	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", raw)
	}

	if neg {
		n.Neg(n)
	}

	return Amount{n: n}, nil
}

func (a Amount) int() *big.Int {
	if a.n == nil {
		return new(big.Int)
	}
	return a.n
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{n: new(big.Int).Add(a.int(), b.int())}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{n: new(big.Int).Sub(a.int(), b.int())}
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.int().Cmp(b.int())
}

// Sign returns -1, 0 or +1 depending on the sign of a.
func (a Amount) Sign() int {
	return a.int().Sign()
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.Sign() == 0
}

// Units returns a copy of the amount in the smallest units.
func (a Amount) Units() *big.Int {
	return new(big.Int).Set(a.int())
}

// String returns the canonical form: the integer part, a dot and exactly
// Decimals fractional digits. Checksums hash this form.
func (a Amount) String() string {
	n := a.int()

	var sign string
	abs := n
	if n.Sign() < 0 {
		sign = "-"
		abs = new(big.Int).Neg(n)
	}

	q, r := new(big.Int).QuoRem(abs, unitsPerCoin, new(big.Int))
	frac := r.String()
	frac = strings.Repeat("0", Decimals-len(frac)) + frac

	return sign + q.String() + "." + frac
}

// MarshalJSON encodes the amount as a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an amount from a JSON string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	v, err := ParseAmount(s)
	if err != nil {
		return err
	}

	*a = v
	return nil
}
