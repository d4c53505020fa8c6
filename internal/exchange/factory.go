package exchange

import (
	"fmt"
	"strings"
)

// SupportedExchanges lists every venue New can build a Client for.
var SupportedExchanges = []string{
	"binance",
	"bybit",
	"okx",
	"kucoin",
	"gate",
	"mexc",
	"bitget",
	"bingx",
}

// New builds a Client for name, a case-insensitive venue identifier.
func New(name string) (Client, error) {
	switch strings.ToLower(name) {
	case "binance":
		return NewBinance(), nil
	case "bybit":
		return NewBybit(), nil
	case "okx":
		return NewOKX(), nil
	case "kucoin":
		return NewKucoin(), nil
	case "gate":
		return NewGate(), nil
	case "mexc":
		return NewMEXC(), nil
	case "bitget":
		return NewBitget(), nil
	case "bingx":
		return NewBingX(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// IsSupported reports whether name is a venue New can build.
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}
