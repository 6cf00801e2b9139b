package internal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hlpilot/config"
	"github.com/vadiminshakov/hlpilot/internal/clients"
	"github.com/vadiminshakov/hlpilot/internal/services/executor"
	"github.com/vadiminshakov/hlpilot/internal/services/market/collector"
	"github.com/vadiminshakov/hlpilot/internal/services/pricer"
	"github.com/vadiminshakov/hlpilot/internal/services/trader"
	"github.com/vadiminshakov/hlpilot/internal/storage/simstate"
)

type priceService interface {
	GetPrice(ctx context.Context, coin string) (decimal.Decimal, error)
	GetFundingRate(ctx context.Context, coin string) (decimal.Decimal, error)
}

// serviceProvider builds the exchange-specific services.
type serviceProvider interface {
	Trader() (executor.Exchange, error)
	Pricer() priceService
	KlineProvider() *collector.HyperliquidKlineProvider
}

// newServiceProvider dispatches on the configured exchange. Market data always
// comes from the Hyperliquid info API at DataURL.
func newServiceProvider(conf config.Config, logger *zap.Logger) (serviceProvider, error) {
	info := clients.NewHyperliquidInfoClient(conf.Hyperliquid.DataURL)
	base := baseProvider{info: info, pricer: pricer.NewHyperliquidPricer(info)}

	switch conf.Exchange {
	case config.ExchangeHyperliquid:
		return &hyperliquidProvider{baseProvider: base, conf: conf.Hyperliquid, logger: logger}, nil
	case config.ExchangePaper:
		return &paperProvider{baseProvider: base, conf: conf.Paper, hl: conf.Hyperliquid, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", conf.Exchange)
	}
}

type baseProvider struct {
	info   *clients.HyperliquidInfoClient
	pricer *pricer.HyperliquidPricer
}

func (p baseProvider) Pricer() priceService { return p.pricer }

func (p baseProvider) KlineProvider() *collector.HyperliquidKlineProvider {
	return collector.NewHyperliquidKlineProvider(p.info)
}

type hyperliquidProvider struct {
	baseProvider
	conf   config.HyperliquidConfig
	logger *zap.Logger
}

// Trader reads account state from the exchange network the orders go to.
// Without a private key the trader is read-only.
func (p *hyperliquidProvider) Trader() (executor.Exchange, error) {
	info := clients.NewHyperliquidInfoClient(p.conf.BaseURL())

	var client *clients.HyperliquidClient
	if p.conf.CanTrade() {
		var err error
		client, err = clients.NewHyperliquidClient(p.conf.PrivateKey, p.conf.BaseURL(), p.conf.AccountAddress)
		if err != nil {
			return nil, err
		}
	} else {
		p.logger.Warn("no private key configured, running in analysis-only mode")
	}

	isCross := p.conf.MarginMode == config.MarginCross
	return trader.NewHyperliquidTrader(info, client, p.conf.AccountAddress, isCross, p.logger), nil
}

type paperProvider struct {
	baseProvider
	conf   config.PaperConfig
	hl     config.HyperliquidConfig
	logger *zap.Logger
}

func (p *paperProvider) Trader() (executor.Exchange, error) {
	scope := "mainnet"
	if p.hl.Testnet {
		scope = "testnet"
	}
	store, err := simstate.NewStore(p.conf.StateDir, "paper_"+scope)
	if err != nil {
		return nil, err
	}
	return trader.NewPaperTrader(p.pricer, decimal.NewFromFloat(p.conf.StartingBalance), store, p.logger)
}
