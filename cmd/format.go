package main

import (
	"fmt"
	"strings"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"NOK": "kr",
}

// formatCurrency renders amount with the currency symbol and a K or M
// suffix for thousands and millions.
func formatCurrency(amount float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "EUR"
	}
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code
	}

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	switch {
	case amount >= 1_000_000:
		return fmt.Sprintf("%s%s%.1fM", sign, symbol, amount/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("%s%s%.1fK", sign, symbol, amount/1_000)
	default:
		return fmt.Sprintf("%s%s%.0f", sign, symbol, amount)
	}
}

// formatPct renders a fraction as a percentage.
func formatPct(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
