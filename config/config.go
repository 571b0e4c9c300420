// Package config loads the YAML configuration shared by the live and
// backtest commands. Credentials never live in the file; they come from
// the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/igtrader/market"
	"github.com/rustyeddy/igtrader/trader"
)

type Config struct {
	Account  Account        `yaml:"account"`
	Market   Market         `yaml:"market"`
	Strategy StrategyConfig `yaml:"strategy"`
	Store    Store          `yaml:"store"`
	Journal  Journal        `yaml:"journal"`
	IG       IG             `yaml:"ig"`
}

// Account is the simulated account used by backtests. Live trading reads
// the real account from IG instead.
type Account struct {
	ID       string  `yaml:"id"`
	Currency string  `yaml:"currency"`
	Balance  float64 `yaml:"balance"`
}

type Market struct {
	Epic         string  `yaml:"epic"`
	Name         string  `yaml:"name"`
	LotSize      float64 `yaml:"lot_size"`
	ContractSize float64 `yaml:"contract_size"`
	Currency     string  `yaml:"currency"`
	MinDealSize  float64 `yaml:"min_deal_size"`
}

type StrategyConfig struct {
	Resolution  market.Resolution `yaml:"resolution"`
	SMA         int               `yaml:"sma"`
	SMATrend    int               `yaml:"sma_trend"`
	Risk        float64           `yaml:"risk"`
	StopPips    float64           `yaml:"stop_pips"`
	ATRLookback int               `yaml:"atr_lookback"`
	ATRRatio    float64           `yaml:"atr_ratio"`
	TargetPips  float64           `yaml:"target_pips"`
	SpreadPips  float64           `yaml:"spread_pips"`

	TradingHours []Window `yaml:"trading_hours"`
}

// Window is one permitted trading interval; days are lowercase English
// weekday names, empty meaning every day.
type Window struct {
	Days  []string `yaml:"days"`
	Start int      `yaml:"start"`
	End   int      `yaml:"end"`
}

type Store struct {
	Path string `yaml:"path"`
}

type Journal struct {
	Path string `yaml:"path"`
}

// IG holds the non-secret client settings. API key, identifier and
// password are read from IG_API_KEY, IG_IDENTIFIER and IG_PASSWORD.
type IG struct {
	Demo      bool   `yaml:"demo"`
	AccountID string `yaml:"account_id"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Account.ID == "" {
		c.Account.ID = "SIM"
	}
	if c.Account.Currency == "" {
		c.Account.Currency = "USD"
	}
	if c.Account.Balance == 0 {
		c.Account.Balance = 1000
	}
	if c.Market.LotSize == 0 {
		c.Market.LotSize = 1
	}
	if c.Market.ContractSize == 0 {
		c.Market.ContractSize = 1
	}
	if c.Market.MinDealSize == 0 {
		c.Market.MinDealSize = 1
	}
	if c.Strategy.Resolution.N == 0 {
		c.Strategy.Resolution = market.Resolution{Unit: market.UnitMinute, N: 10}
	}
	if c.Strategy.Risk == 0 {
		c.Strategy.Risk = 0.05
	}
	if c.Store.Path == "" {
		c.Store.Path = "prices.db"
	}
}

func (c *Config) Validate() error {
	if c.Market.Epic == "" {
		return fmt.Errorf("market.epic is required")
	}
	if _, err := c.TradingHours(); err != nil {
		return err
	}
	return c.TraderStrategy().Validate()
}

// TraderStrategy converts the config into the engine's strategy value.
// Trading hours are assumed validated.
func (c *Config) TraderStrategy() trader.Strategy {
	hours, _ := c.TradingHours()
	return trader.Strategy{
		Resolution:   c.Strategy.Resolution,
		SMA:          c.Strategy.SMA,
		SMATrend:     c.Strategy.SMATrend,
		Risk:         c.Strategy.Risk,
		StopPips:     c.Strategy.StopPips,
		ATRLookback:  c.Strategy.ATRLookback,
		ATRRatio:     c.Strategy.ATRRatio,
		TargetPips:   c.Strategy.TargetPips,
		SpreadPips:   c.Strategy.SpreadPips,
		TradingHours: hours,
	}
}

func (c *Config) TradingHours() (market.Windows, error) {
	var ws market.Windows
	for _, w := range c.Strategy.TradingHours {
		if w.Start < 0 || w.End > 24 || w.Start >= w.End {
			return nil, fmt.Errorf("trading window %d-%d is not a valid hour range", w.Start, w.End)
		}
		win := market.TradingWindow{Start: w.Start, End: w.End}
		for _, d := range w.Days {
			day, err := parseWeekday(d)
			if err != nil {
				return nil, err
			}
			win.Days = append(win.Days, day)
		}
		ws = append(ws, win)
	}
	return ws, nil
}

func (c *Config) TraderMarket() market.Market {
	return market.Market{
		Epic:         c.Market.Epic,
		Name:         c.Market.Name,
		LotSize:      c.Market.LotSize,
		ContractSize: c.Market.ContractSize,
		Currency:     c.Market.Currency,
		MinDealSize:  c.Market.MinDealSize,
	}
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
