package currencies

import "github.com/sig-0/bocrates/storage/types"

var (
	USD types.Currency = "USD"
	JPY types.Currency = "JPY"
	THB types.Currency = "THB"
	MYR types.Currency = "MYR"
	SGD types.Currency = "SGD"
	PHP types.Currency = "PHP"
)

// Supported returns the tracked currencies, in display order
func Supported() []types.Currency {
	return []types.Currency{USD, JPY, THB, MYR, SGD, PHP}
}

// PublishedNames maps the names published by the Bank of China
// to the tracked currency codes
func PublishedNames() map[string]types.Currency {
	return map[string]types.Currency{
		"美元":    USD,
		"日元":    JPY,
		"泰国铢":   THB,
		"泰铢":    THB,
		"林吉特":   MYR,
		"新加坡元":  SGD,
		"菲律宾比索": PHP,
	}
}
