package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource quotes the USD value of one XRP.
type PriceSource interface {
	USDPerXRP(ctx context.Context) (decimal.Decimal, error)
}

// StaticPrice is a fixed conversion rate from configuration.
type StaticPrice struct {
	rate decimal.Decimal
}

func NewStaticPrice(usdPerXRP float64) StaticPrice {
	return StaticPrice{rate: decimal.NewFromFloat(usdPerXRP)}
}

func (p StaticPrice) USDPerXRP(context.Context) (decimal.Decimal, error) {
	return p.rate, nil
}
