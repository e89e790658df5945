package balance

import (
	"sort"

	"quant-engine/pkg/exchanges/common"
)

// Balance is the split of one asset between free and locked funds.
type Balance struct {
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// Total returns free plus locked.
func (b Balance) Total() float64 { return b.Free + b.Locked }

// Portfolio is an immutable view of wallet balances taken during a refresh.
type Portfolio struct {
	assets map[string]Balance
}

// FromAssetBalances builds a portfolio from a futures wallet listing.
// Free is the available balance; anything held beyond it counts as locked.
func FromAssetBalances(rows []common.AssetBalance) Portfolio {
	p := Portfolio{assets: make(map[string]Balance, len(rows))}
	for _, r := range rows {
		locked := r.Balance - r.AvailableBalance
		if locked < 0 {
			locked = 0
		}
		p.assets[r.Asset] = Balance{Free: r.AvailableBalance, Locked: locked}
	}
	return p
}

// Free returns the free balance of asset, or 0 when it is not held.
func (p Portfolio) Free(asset string) float64 {
	return p.assets[asset].Free
}

// Get returns the balance row for asset.
func (p Portfolio) Get(asset string) (Balance, bool) {
	b, ok := p.assets[asset]
	return b, ok
}

// Assets lists held assets in sorted order.
func (p Portfolio) Assets() []string {
	out := make([]string, 0, len(p.assets))
	for a := range p.assets {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of assets.
func (p Portfolio) Len() int { return len(p.assets) }

// Map returns a copy of the balances keyed by asset.
func (p Portfolio) Map() map[string]Balance {
	out := make(map[string]Balance, len(p.assets))
	for k, v := range p.assets {
		out[k] = v
	}
	return out
}
