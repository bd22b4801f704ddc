// Package catalog loads the static game data the auction engine needs:
// houses, item templates and the economy rates.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
)

//go:embed default.yaml
var defaultCatalog []byte

type economyDoc struct {
	OutbidPercent int64  `yaml:"outbid_percent"`
	MinOutbid     int64  `yaml:"min_outbid"`
	MinDeposit    int64  `yaml:"min_deposit"`
	DepositRate   string `yaml:"deposit_rate"`
	CutRate       string `yaml:"cut_rate"`
	DepositPolicy string `yaml:"deposit_policy"`
}

type houseDoc struct {
	ID             uint32 `yaml:"id"`
	Name           string `yaml:"name"`
	Faction        string `yaml:"faction"`
	DepositPercent int64  `yaml:"deposit_percent"`
	CutPercent     int64  `yaml:"cut_percent"`
	MaxCut         int64  `yaml:"max_cut"`
	MinDuration    string `yaml:"min_duration"`
	MaxDuration    string `yaml:"max_duration"`
}

type itemDoc struct {
	ID            uint32 `yaml:"id"`
	Name          string `yaml:"name"`
	Class         uint32 `yaml:"class"`
	SubClass      uint32 `yaml:"subclass"`
	Quality       uint32 `yaml:"quality"`
	InventoryType uint32 `yaml:"inventory_type"`
	RequiredLevel uint32 `yaml:"required_level"`
	SellPrice     int64  `yaml:"sell_price"`
	MaxStack      uint32 `yaml:"max_stack"`
}

type document struct {
	Economy *economyDoc `yaml:"economy"`
	Houses  []houseDoc  `yaml:"houses"`
	Items   []itemDoc   `yaml:"items"`
}

// Catalog is the parsed game data. It is read-only after Load.
type Catalog struct {
	economy   auction.Economy
	houses    []auction.House
	templates map[uint32]auction.ItemTemplate
}

// Load reads a catalog file. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a YAML catalog. Missing economy settings fall back to
// auction.DefaultEconomy.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Houses) == 0 {
		return nil, fmt.Errorf("%w: catalog has no houses", auction.ErrInvalidHouseConfig)
	}

	econ, err := doc.Economy.economy()
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		economy:   econ,
		houses:    make([]auction.House, 0, len(doc.Houses)),
		templates: make(map[uint32]auction.ItemTemplate, len(doc.Items)),
	}
	for _, h := range doc.Houses {
		house, err := h.house()
		if err != nil {
			return nil, err
		}
		c.houses = append(c.houses, house)
	}
	for _, it := range doc.Items {
		if it.ID == 0 {
			return nil, errors.New("catalog item without id")
		}
		if _, dup := c.templates[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item template %d", it.ID)
		}
		if it.SellPrice < 0 {
			return nil, fmt.Errorf("item template %d has negative sell price", it.ID)
		}
		c.templates[it.ID] = auction.ItemTemplate{
			ID:            it.ID,
			Name:          it.Name,
			Class:         it.Class,
			SubClass:      it.SubClass,
			Quality:       it.Quality,
			InventoryType: it.InventoryType,
			RequiredLevel: it.RequiredLevel,
			SellPrice:     it.SellPrice,
			MaxStack:      it.MaxStack,
		}
	}
	return c, nil
}

func (e *economyDoc) economy() (auction.Economy, error) {
	econ := auction.DefaultEconomy()
	if e == nil {
		return econ, nil
	}
	if e.OutbidPercent != 0 {
		econ.OutbidPercent = e.OutbidPercent
	}
	if e.MinOutbid != 0 {
		econ.MinOutbid = e.MinOutbid
	}
	econ.MinDeposit = e.MinDeposit
	if e.DepositPolicy != "" {
		econ.DepositPolicy = auction.DepositPolicy(e.DepositPolicy)
	}

	var err error
	if econ.DepositRate, err = rate(e.DepositRate, econ.DepositRate); err != nil {
		return auction.Economy{}, fmt.Errorf("deposit_rate: %w", err)
	}
	if econ.CutRate, err = rate(e.CutRate, econ.CutRate); err != nil {
		return auction.Economy{}, fmt.Errorf("cut_rate: %w", err)
	}
	return econ, nil
}

func rate(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return fallback, nil
	}
	return decimal.NewFromString(s)
}

func (h houseDoc) house() (auction.House, error) {
	minDur, err := duration(h.MinDuration, 2*time.Hour)
	if err != nil {
		return auction.House{}, fmt.Errorf("house %d min_duration: %w", h.ID, err)
	}
	maxDur, err := duration(h.MaxDuration, 48*time.Hour)
	if err != nil {
		return auction.House{}, fmt.Errorf("house %d max_duration: %w", h.ID, err)
	}
	return auction.House{
		ID:             auction.HouseID(h.ID),
		Name:           h.Name,
		Faction:        auction.Faction(h.Faction),
		DepositPercent: h.DepositPercent,
		CutPercent:     h.CutPercent,
		MaxCut:         h.MaxCut,
		MinDuration:    minDur,
		MaxDuration:    maxDur,
	}, nil
}

func duration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// Economy returns the configured money rules.
func (c *Catalog) Economy() auction.Economy {
	return c.economy
}

// Houses returns the configured houses in file order.
func (c *Catalog) Houses() []auction.House {
	return append([]auction.House(nil), c.houses...)
}

// Template implements auction.Templates.
func (c *Catalog) Template(id uint32) (auction.ItemTemplate, bool) {
	t, ok := c.templates[id]
	return t, ok
}

// Len returns the number of item templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}
