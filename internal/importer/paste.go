package importer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// MismatchThreshold is the share of held symbols a portfolio paste must
// mention before it is considered to belong to the account.
const MismatchThreshold = 0.30

// PasteStatus tells whether a pasted trade already executed or is only
// placed.
type PasteStatus string

const (
	PasteExecuted PasteStatus = "executed"
	PastePlaced   PasteStatus = "placed"
)

// BalanceItem is a holding read from a portfolio paste.
type BalanceItem struct {
	Symbol string  `json:"symbol" yaml:"symbol"`
	Units  float64 `json:"units" yaml:"units"`
}

// TradeItem is an id-tagged trade read from a transaction paste.
type TradeItem struct {
	ID        string           `json:"id" yaml:"id"`
	Type      domain.OrderSide `json:"type" yaml:"type"`
	Symbol    string           `json:"symbol" yaml:"symbol"`
	Units     float64          `json:"units" yaml:"units"`
	Price     float64          `json:"price" yaml:"price"`
	Status    PasteStatus      `json:"status" yaml:"status"`
	Date      string           `json:"date" yaml:"date"`
	Duplicate bool             `json:"duplicate" yaml:"duplicate"`
	Warnings  []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Preview is the reviewable result of a paste. Nothing is committed.
type Preview struct {
	Account   domain.AccountID `json:"account" yaml:"account"`
	Balances  []BalanceItem    `json:"balances" yaml:"balances"`
	Trades    []TradeItem      `json:"trades" yaml:"trades"`
	MatchRate *float64         `json:"matchRate,omitempty" yaml:"matchRate,omitempty"`
	Warnings  []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewTrades returns the trades that are not duplicates.
func (p Preview) NewTrades() []TradeItem {
	var out []TradeItem
	for _, t := range p.Trades {
		if !t.Duplicate {
			out = append(out, t)
		}
	}
	return out
}

var (
	txIDPattern  = regexp.MustCompile(`(?i)^[a-f0-9]{6,20}$`)
	datePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	sellPattern  = regexp.MustCompile(`(?i)sell`)
	buyPattern   = regexp.MustCompile(`(?i)buy`)
	execPattern  = regexp.MustCompile(`(?i)executed`)
	placePattern = regexp.MustCompile(`(?i)placed`)
)

// ParsePaste reads balances and trades out of text copied from a brokerage
// dashboard. Trades whose id is already in the journal or pending orders are
// flagged as duplicates. A portfolio paste that mentions fewer than
// MismatchThreshold of the held symbols carries an account mismatch warning.
func ParsePaste(text string, state domain.AccountState, now time.Time) Preview {
	p := Preview{Account: state.ID, Balances: []BalanceItem{}, Trades: []TradeItem{}}
	if strings.TrimSpace(text) == "" {
		return p
	}

	if strings.Contains(text, "Portfolio") {
		if rate, ok := matchRate(text, state); ok {
			p.MatchRate = &rate
			if rate < MismatchThreshold {
				p.Warnings = append(p.Warnings, fmt.Sprintf(
					"account mismatch: paste matches only %d%% of %s holdings",
					int(math.Round(rate*100)), state.ID))
			}
		}
		p.Balances = parseBalances(text, state)
	}

	p.Trades = parseTrades(text, state, now)
	return p
}

func heldSymbols(state domain.AccountState) []string {
	var out []string
	for _, pos := range state.Positions {
		if !pos.IsCash() {
			out = append(out, domain.NormalizeSymbol(pos.Symbol))
		}
	}
	return out
}

func matchRate(text string, state domain.AccountState) (float64, bool) {
	syms := heldSymbols(state)
	if len(syms) == 0 {
		return 0, false
	}
	var lines []string
	for _, l := range splitAny(text, "\n\t") {
		lines = append(lines, strings.ToUpper(strings.TrimSpace(l)))
	}
	found := 0
	for _, sym := range syms {
		double := sym + sym
		for _, l := range lines {
			if strings.Contains(l, double) || l == sym {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(syms)), true
}

// parseBalances reads "SYMSYM / pct / units" blocks. Cash is read from the
// "USDUSD / pct / $value" block.
func parseBalances(text string, state domain.AccountState) []BalanceItem {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	out := []BalanceItem{}

	for i, l := range lines {
		if strings.HasPrefix(strings.ToUpper(l), domain.CashSymbol+domain.CashSymbol) && i+2 < len(lines) {
			if v, ok := parseNumber(strings.TrimPrefix(lines[i+2], "$")); ok {
				out = append(out, BalanceItem{Symbol: domain.CashSymbol, Units: v})
			}
			break
		}
	}

	for _, sym := range heldSymbols(state) {
		double := sym + sym
		for i, l := range lines {
			up := strings.ToUpper(l)
			if !strings.HasPrefix(up, double) && up != sym {
				continue
			}
			if i+2 < len(lines) && !strings.HasPrefix(lines[i+2], "$") {
				if v, ok := parseNumber(lines[i+2]); ok {
					out = append(out, BalanceItem{Symbol: sym, Units: v})
				}
			}
			break
		}
	}
	return out
}

func parseTrades(text string, state domain.AccountState, now time.Time) []TradeItem {
	var tokens []string
	for _, t := range splitAny(text, "\n\t") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}

	known := make(map[string]bool, len(state.Journal)+len(state.PendingOrders))
	for _, e := range state.Journal {
		known[e.ID] = true
	}
	for _, o := range state.PendingOrders {
		known[o.ID] = true
	}

	out := []TradeItem{}
	for i, tok := range tokens {
		if !txIDPattern.MatchString(tok) {
			continue
		}

		side := domain.OrderSideBuy
		if i > 0 {
			switch {
			case sellPattern.MatchString(tokens[i-1]):
				side = domain.OrderSideSell
			case buyPattern.MatchString(tokens[i-1]):
				side = domain.OrderSideBuy
			}
		}

		var units float64
		symbol := "Unknown"
		if i+1 < len(tokens) {
			next := tokens[i+1]
			if parts := strings.Fields(next); len(parts) > 1 {
				if v, ok := parseNumber(parts[0]); ok {
					units, symbol = v, parts[1]
				}
			} else if v, ok := parseNumber(next); ok {
				units = v
				if i+2 < len(tokens) {
					symbol = tokens[i+2]
				}
			}
		}

		end := i + 8
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[i:end]

		var price float64
		for _, w := range window {
			if strings.HasPrefix(w, "$") && !strings.Contains(w, "USD") {
				price, _ = parseNumber(strings.TrimPrefix(w, "$"))
				break
			}
		}

		executed, placed := false, false
		date := now.UTC().Format("2006-01-02")
		dateSet := false
		for _, w := range window {
			executed = executed || execPattern.MatchString(w)
			placed = placed || placePattern.MatchString(w)
			if !dateSet {
				if d := datePattern.FindString(w); d != "" {
					date, dateSet = d, true
				}
			}
		}
		if !executed && !placed {
			continue
		}

		item := TradeItem{
			ID:        tok,
			Type:      side,
			Symbol:    domain.NormalizeSymbol(symbol),
			Units:     units,
			Price:     price,
			Status:    PastePlaced,
			Date:      date,
			Duplicate: known[tok],
		}
		if executed {
			item.Status = PasteExecuted
		}
		if !(units > 0) {
			item.Warnings = append(item.Warnings, "units not found")
		}
		if !(price > 0) {
			item.Warnings = append(item.Warnings, "price not found")
		}
		if item.Symbol == "UNKNOWN" {
			item.Warnings = append(item.Warnings, "symbol not found")
		}
		out = append(out, item)
	}
	return out
}

// parseNumber reads the leading number of s, ignoring thousands separators.
func parseNumber(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func splitAny(s, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) })
}
