package trend

import (
	"github.com/shopspring/decimal"

	"github.com/sig-0/bocrates/provider/currencies"
	"github.com/sig-0/bocrates/storage/types"
)

// Messages are the suggestion texts attached to a summary
type Messages struct {
	Rising   string
	Dropping string
	Stable   string
	Watch    string
}

// Config is the trend classification configuration
type Config struct {
	Messages Messages

	// Majors are the currencies classified against the thresholds.
	// Every other currency gets the watch message
	Majors []types.Currency

	// RiseThreshold and DropThreshold are percent changes.
	// A change above RiseThreshold is rising, below DropThreshold is dropping
	RiseThreshold decimal.Decimal
	DropThreshold decimal.Decimal
}

// DefaultMessages returns the default suggestion texts
func DefaultMessages() Messages {
	return Messages{
		Rising:   "Rate rising significantly. Consider selling if holding.",
		Dropping: "Rate dropping. Good time to buy?",
		Stable:   "Stable.",
		Watch:    "Watch closely.",
	}
}

// DefaultConfig returns the default trend configuration
func DefaultConfig() Config {
	return Config{
		Messages:      DefaultMessages(),
		Majors:        []types.Currency{currencies.USD, currencies.SGD},
		RiseThreshold: decimal.RequireFromString("0.5"),
		DropThreshold: decimal.RequireFromString("-0.5"),
	}
}
