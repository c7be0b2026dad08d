package types

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// Coins maps a denomination to a decimal amount.
type Coins map[string]string

// NewCoins validates every amount as an unsigned 256 bit decimal and drops
// zero amounts.
func NewCoins(amounts map[string]string) (Coins, error) {
	coins := make(Coins, len(amounts))
	for denom, amount := range amounts {
		if denom == "" {
			return nil, fmt.Errorf("empty denom")
		}
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q for denom %s: %w", amount, denom, err)
		}
		if v.IsZero() {
			continue
		}
		coins[denom] = v.Dec()
	}
	return coins, nil
}

// Denoms returns the denominations in ascending order.
func (c Coins) Denoms() []string {
	denoms := make([]string, 0, len(c))
	for denom := range c {
		denoms = append(denoms, denom)
	}
	sort.Strings(denoms)
	return denoms
}

func (c Coins) IsEmpty() bool {
	return len(c) == 0
}

// MarshalJSON emits {} for an empty set so funds are never null on the wire.
func (c Coins) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(c))
}
