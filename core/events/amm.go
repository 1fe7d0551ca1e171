package events

import (
	"strconv"

	"fall/core/types"
	"fall/crypto"
)

const (
	TypeExchangeCreated    = "amm.exchange_created"
	TypePoolCreated        = "amm.pool_created"
	TypeLiquidityDeposited = "amm.liquidity_deposited"
	TypeLiquidityWithdrawn = "amm.liquidity_withdrawn"
	TypeSwapped            = "amm.swapped"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

type ExchangeCreated struct {
	Exchange        string
	Admin           crypto.Address
	LiquidityFeeBps uint64
	ProtocolFeeBps  uint64
}

func (ExchangeCreated) EventType() string { return TypeExchangeCreated }

func (e ExchangeCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeExchangeCreated,
		Attributes: map[string]string{
			"exchange":        e.Exchange,
			"admin":           e.Admin.String(),
			"liquidityFeeBps": u64(e.LiquidityFeeBps),
			"protocolFeeBps":  u64(e.ProtocolFeeBps),
		},
	}
}

type PoolCreated struct {
	Pool     types.PoolID
	Exchange string
	AssetA   string
	AssetB   string
	Height   uint64
}

func (PoolCreated) EventType() string { return TypePoolCreated }

func (e PoolCreated) Event() *types.Event {
	return &types.Event{
		Type: TypePoolCreated,
		Attributes: map[string]string{
			"pool":     e.Pool.String(),
			"exchange": e.Exchange,
			"assetA":   e.AssetA,
			"assetB":   e.AssetB,
			"height":   u64(e.Height),
		},
	}
}

type LiquidityDeposited struct {
	Pool           types.PoolID
	Provider       crypto.Address
	AmountA        uint64
	AmountB        uint64
	Shares         uint64
	ProtocolShares uint64
}

func (LiquidityDeposited) EventType() string { return TypeLiquidityDeposited }

func (e LiquidityDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityDeposited,
		Attributes: map[string]string{
			"pool":           e.Pool.String(),
			"provider":       e.Provider.String(),
			"amountA":        u64(e.AmountA),
			"amountB":        u64(e.AmountB),
			"shares":         u64(e.Shares),
			"protocolShares": u64(e.ProtocolShares),
		},
	}
}

type LiquidityWithdrawn struct {
	Pool     types.PoolID
	Provider crypto.Address
	Shares   uint64
	AmountA  uint64
	AmountB  uint64
}

func (LiquidityWithdrawn) EventType() string { return TypeLiquidityWithdrawn }

func (e LiquidityWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityWithdrawn,
		Attributes: map[string]string{
			"pool":     e.Pool.String(),
			"provider": e.Provider.String(),
			"shares":   u64(e.Shares),
			"amountA":  u64(e.AmountA),
			"amountB":  u64(e.AmountB),
		},
	}
}

type Swapped struct {
	Pool      types.PoolID
	Trader    crypto.Address
	AssetIn   string
	AmountIn  uint64
	AssetOut  string
	AmountOut uint64
	Fee       uint64
}

func (Swapped) EventType() string { return TypeSwapped }

func (e Swapped) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapped,
		Attributes: map[string]string{
			"pool":      e.Pool.String(),
			"trader":    e.Trader.String(),
			"assetIn":   e.AssetIn,
			"amountIn":  u64(e.AmountIn),
			"assetOut":  e.AssetOut,
			"amountOut": u64(e.AmountOut),
			"fee":       u64(e.Fee),
		},
	}
}
