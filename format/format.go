// Copyright 2026 Agora Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package format converts integer token base-unit values to and from
// human-readable decimal strings. All arithmetic is arbitrary precision;
// floating point is never used.
package format

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrNegativeAmount = errors.New("negative amount")

// FromBaseUnits renders an integer amount of token base units as a decimal
// string given the token's decimals. Trailing fractional zeros are trimmed,
// so 1500000000000000000 at 18 decimals renders as "1.5".
func FromBaseUnits(amount *big.Int, decimals uint) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if amount.Sign() < 0 {
		return "", ErrNegativeAmount
	}
	if decimals == 0 {
		return amount.String(), nil
	}
	divisor := new(big.Int).Exp(
		big.NewInt(10),
		big.NewInt(int64(decimals)),
		nil,
	)
	whole, frac := new(big.Int).QuoRem(amount, divisor, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String(), nil
	}
	fracDigits := frac.String()
	if uint(len(fracDigits)) < decimals {
		fracDigits = strings.Repeat(
			"0",
			int(decimals)-len(fracDigits),
		) + fracDigits
	}
	fracDigits = strings.TrimRight(fracDigits, "0")
	return whole.String() + "." + fracDigits, nil
}

// ToBaseUnits parses a decimal string into an integer amount of token base
// units given the token's decimals. The fractional part may not exceed the
// token's precision.
func ToBaseUnits(s string, decimals uint) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return nil, fmt.Errorf("malformed amount: %q", s)
	}
	if uint(len(frac)) > decimals {
		return nil, fmt.Errorf(
			"amount %q exceeds %d decimal places",
			s,
			decimals,
		)
	}
	// Right-pad the fractional part to full precision and parse the
	// combined digits as a single integer
	padded := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	ret, ok := new(big.Int).SetString(padded, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount: %q", s)
	}
	if ret.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return ret, nil
}
