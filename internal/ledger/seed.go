package ledger

import (
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// Defaults returns the static seed state for id. Unknown ids get an empty
// state with only a cash position.
func Defaults(id domain.AccountID) domain.AccountState {
	var s domain.AccountState
	switch id {
	case domain.AnchorAccount:
		s = anchorSeed()
	case domain.RotatorAccount:
		s = rotatorSeed()
	default:
		s = domain.AccountState{
			Positions: []domain.Position{cash(0, 0)},
		}
	}
	s.ID = id
	Recompute(s.Positions)
	return s
}

// DefaultPosition returns the seeded position for symbol in account id.
func DefaultPosition(id domain.AccountID, symbol string) (domain.Position, bool) {
	return Defaults(id).Position(symbol)
}

func pos(symbol, name string, units, price, cost, target float64) domain.Position {
	return domain.Position{
		Symbol:           symbol,
		Name:             name,
		Units:            units,
		CurrentPrice:     price,
		TotalCost:        cost,
		TargetAllocation: target,
	}
}

func cash(units, target float64) domain.Position {
	return domain.Position{
		Symbol:           domain.CashSymbol,
		Name:             "Cash Reserve (USDC)",
		Units:            units,
		CurrentPrice:     1,
		TotalCost:        units,
		TargetAllocation: target,
	}
}

func order(id string, side domain.OrderSide, symbol string, units, price float64, note string) domain.PendingOrder {
	return domain.PendingOrder{
		ID:     id,
		Type:   side,
		Symbol: symbol,
		Units:  units,
		Price:  price,
		Status: domain.OrderStatusOpen,
		Date:   "2026-02-13",
		Note:   note,
	}
}

func trade(id, ts string, side domain.EntryType, symbol string, units, price float64, notes string) domain.JournalEntry {
	t, _ := time.Parse(time.RFC3339, ts)
	return domain.JournalEntry{
		ID:        id,
		Timestamp: t,
		Type:      side,
		Symbol:    symbol,
		Units:     domain.Float(units),
		Price:     domain.Float(price),
		Notes:     notes,
	}
}

func note(id, ts, notes string) domain.JournalEntry {
	t, _ := time.Parse(time.RFC3339, ts)
	return domain.JournalEntry{ID: id, Timestamp: t, Type: domain.EntryNote, Symbol: domain.CashSymbol, Notes: notes}
}

func anchorSeed() domain.AccountState {
	const (
		buy  = domain.OrderSideBuy
		sell = domain.OrderSideSell
	)
	return domain.AccountState{
		Positions: []domain.Position{
			pos("SUI", "Sui", 3012.10, 0.9825, 3735.00, 50.00),
			pos("LINK", "Chainlink", 16.82, 8.88, 149.75, 8.33),
			pos("AAVE", "Aave", 1.241, 121.05, 149.66, 8.33),
			pos("IMX", "ImmutableX", 877.38, 0.1685, 149.76, 8.34),
			cash(201.20, 25.00),
		},
		PendingOrders: []domain.PendingOrder{
			order("513b7d5", sell, "SUI", 1100.00, 1.05, "King Rule: Trim Strength"),
			order("35733e7", sell, "AAVE", 0.426, 175.85, "Profit target"),
			order("0105e65", sell, "IMX", 282.17, 0.2658, "Ladder sell 1"),
			order("12092d7", sell, "IMX", 282.17, 0.2658, "Ladder sell 2"),
			order("41dad42", buy, "LINK", 6.06, 7.923, "Dip entry"),
			order("c5f78c5", buy, "IMX", 501.00, 0.1497, "Dip entry"),
			order("884824d", buy, "BTC", 0.70422535, 106.50, "Speculative position"),
		},
		Journal: []domain.JournalEntry{
			note("init-0", "2026-02-13T08:00:00Z", "Journal initialized."),
			trade("d0578f8", "2026-02-13T09:00:00Z", domain.EntrySell, "FLR", 24842.00, 0.00953, "Market Sell - Liquidation"),
			trade("7c6747a", "2026-02-13T09:05:00Z", domain.EntrySell, "INJ", 74.22, 3.123, "Market Sell - Liquidation"),
			trade("4e83f83", "2026-02-13T09:10:00Z", domain.EntrySell, "FLR", 15902.00, 0.00953, "Market Sell - Liquidation"),
			trade("2c50869", "2026-02-13T09:15:00Z", domain.EntrySell, "INJ", 11.80, 3.121, "Market Sell - Liquidation"),
			trade("6ef848e", "2026-02-13T10:00:00Z", domain.EntryBuy, "AAVE", 1.241, 119.40, "Market Buy - Strategic Entry"),
			trade("522de0b", "2026-02-13T10:05:00Z", domain.EntryBuy, "IMX", 877.38, 0.169, "Market Buy - Strategic Entry"),
			trade("4152523", "2026-02-13T10:10:00Z", domain.EntryBuy, "LINK", 16.82, 8.815, "Market Buy - Strategic Entry"),
		},
		RecycledValue: 450.00,
		TargetValue:   35000,
	}
}

func rotatorSeed() domain.AccountState {
	const (
		buy  = domain.OrderSideBuy
		sell = domain.OrderSideSell
	)
	return domain.AccountState{
		Positions: []domain.Position{
			pos("ONDO", "Ondo Finance", 7953.54, 0.2701, 2092.26, 16.00),
			pos("RENDER", "Render Network", 1537.10, 1.39, 1929.91, 16.00),
			pos("FET", "Fetch.ai", 12377.40, 0.1674, 2092.24, 16.00),
			pos("UNI", "Uniswap", 588.696, 3.39, 2013.33, 16.00),
			pos("HYPE", "Hyperliquid", 35.666, 31.30, 1115.85, 16.00),
			cash(4505.33, 25.00),
		},
		PendingOrders: []domain.PendingOrder{
			order("084639c", buy, "HYPE", 12.712, 23.59, "Dip Buy 1"),
			order("3b66781", buy, "HYPE", 12.963, 27.00, "Dip Buy 2"),
			order("b069f8e", buy, "UNI", 143.37, 2.79, "Dip Buy 1"),
			order("a04b661", buy, "UNI", 128.20, 3.12, "Dip Buy 2"),
			order("9aa45cb", buy, "ONDO", 2642.01, 0.18925, "Dip Buy 1"),
			order("029b889", buy, "ONDO", 2177.89, 0.22958, "Dip Buy 2"),
			order("a4519ae", buy, "RENDER", 472.59, 1.058, "Dip Buy 1"),
			order("391bed1", buy, "RENDER", 416.32, 1.201, "Dip Buy 2"),
			order("d1ddb2c", buy, "FET", 3311.30, 0.151, "Dip Buy 1"),
			order("70091f8", buy, "FET", 3367.00, 0.1485, "Dip Buy 2"),
			order("04025e2", sell, "RENDER", 507.59, 1.99, "Profit Target"),
			order("cb628ee", sell, "HYPE", 21.409, 47.17, "Profit Target"),
			order("5966d4d", sell, "UNI", 194.96, 5.181, "Profit Target"),
			order("60c3eba", sell, "ONDO", 2537.49, 0.39807, "Profit Target"),
			order("8dafa30", sell, "FET", 3976.10, 0.2515, "Profit Target"),
		},
		Journal: []domain.JournalEntry{
			note("init-alts", "2026-02-13T07:00:00Z", "Journal initialized. Mass liquidation and redeployment."),
			trade("3a2b4ff", "2026-02-13T08:00:00Z", domain.EntrySell, "ETH", 1.3288, 2057.93, "Liquidation"),
			trade("56d89ed", "2026-02-13T08:01:00Z", domain.EntrySell, "BTC", 0.0185, 68972.39, "Liquidation"),
			trade("f477068", "2026-02-13T08:02:00Z", domain.EntrySell, "XRP", 681.38, 1.413, "Liquidation"),
			trade("c60ed82", "2026-02-13T08:32:00Z", domain.EntrySell, "HBAR", 11702.70, 0.09689, "Liquidation"),
			trade("b9251a4", "2026-02-13T12:00:00Z", domain.EntryBuy, "RENDER", 1416.97, 1.362, "Core Position Entry"),
			trade("4217c94", "2026-02-13T12:05:00Z", domain.EntryBuy, "FET", 12597.40, 0.1661, "Core Position Entry"),
			trade("66c0699", "2026-02-13T12:10:00Z", domain.EntryBuy, "UNI", 385.07, 3.421, "Core Position Entry"),
			trade("91b02e0", "2026-02-13T12:15:00Z", domain.EntryBuy, "HYPE", 35.666, 31.29, "Core Position Entry"),
			trade("14fe634", "2026-02-13T12:20:00Z", domain.EntryBuy, "UNI", 384.95, 3.422, "Entry 2"),
			trade("87d0647", "2026-02-13T12:25:00Z", domain.EntryBuy, "ONDO", 7953.54, 0.26306, "Core Position Entry"),
			trade("af08e15", "2026-02-13T12:30:00Z", domain.EntryBuy, "HBAR", 6718.10, 0.09593, "Entry"),
			trade("d369a00", "2026-02-13T13:00:00Z", domain.EntrySell, "UNI", 227.65, 3.417, "Trim"),
			trade("6c5b197", "2026-02-13T13:05:00Z", domain.EntryBuy, "FET", 381.70, 0.1661, "Add"),
			trade("fdd7b54", "2026-02-13T13:10:00Z", domain.EntrySell, "UNI", 43.64, 3.435, "Trim"),
			trade("d799e30", "2026-02-13T13:15:00Z", domain.EntrySell, "UNI", 43.64, 3.435, "Trim"),
			trade("a78e12e", "2026-02-13T13:20:00Z", domain.EntrySell, "FET", 601.70, 0.1661, "Trim"),
			trade("14f95a3", "2026-02-13T13:25:00Z", domain.EntryBuy, "UNI", 18.72, 3.431, "Add"),
			trade("ddb364d", "2026-02-13T13:30:00Z", domain.EntryBuy, "UNI", 10.08, 3.43, "Add"),
		},
		TargetValue: 200000,
	}
}
