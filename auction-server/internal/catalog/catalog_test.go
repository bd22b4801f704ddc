package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
)

func TestDefault(t *testing.T) {
	c := Default()

	houses := c.Houses()
	assert.Equal(t, 3, len(houses))
	check.Equal(t, auction.HouseID(7), houses[2].ID)
	check.Equal(t, auction.FactionNeutral, houses[2].Faction)
	check.Equal(t, int64(75), houses[2].DepositPercent)
	check.Equal(t, int64(15), houses[2].CutPercent)
	check.Equal(t, 2*time.Hour, houses[0].MinDuration)
	check.Equal(t, 48*time.Hour, houses[0].MaxDuration)

	econ := c.Economy()
	check.Equal(t, int64(5), econ.OutbidPercent)
	check.Equal(t, auction.DepositForfeit, econ.DepositPolicy)
	check.True(t, econ.DepositRate.Equal(decimal.NewFromInt(1)))

	linen, ok := c.Template(2589)
	assert.True(t, ok)
	check.Equal(t, "Linen Cloth", linen.Name)
	check.Equal(t, uint32(20), linen.MaxStack)
	_, ok = c.Template(1)
	check.False(t, ok)
}

func TestParseOverrides(t *testing.T) {
	c, err := Parse([]byte(`
economy:
  min_deposit: 25
  cut_rate: "0.5"
  deposit_policy: refund
houses:
  - id: 3
    name: Gadgetzan
    faction: neutral
    deposit_percent: 75
    cut_percent: 15
    max_cut: 1000
    min_duration: 30m
    max_duration: 12h
items:
  - {id: 1, name: Rune, sell_price: 4}
`))
	assert.NoError(t, err)

	econ := c.Economy()
	check.Equal(t, int64(25), econ.MinDeposit)
	check.Equal(t, int64(5), econ.OutbidPercent)
	check.True(t, econ.CutRate.Equal(decimal.RequireFromString("0.5")))
	check.Equal(t, auction.DepositRefund, econ.DepositPolicy)

	h := c.Houses()[0]
	check.Equal(t, int64(1000), h.MaxCut)
	check.Equal(t, 30*time.Minute, h.MinDuration)
	check.Equal(t, 12*time.Hour, h.MaxDuration)
	check.Equal(t, 1, c.Len())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "houses: [\n"},
		{"no houses", "items: []\n"},
		{"bad duration", "houses:\n  - {id: 1, faction: horde, min_duration: soon}\n"},
		{"bad rate", "economy: {cut_rate: lots}\nhouses:\n  - {id: 1, faction: horde}\n"},
		{"item without id", "houses:\n  - {id: 1, faction: horde}\nitems:\n  - {name: Rune}\n"},
		{"duplicate item", "houses:\n  - {id: 1, faction: horde}\nitems:\n  - {id: 4}\n  - {id: 4}\n"},
		{"negative price", "houses:\n  - {id: 1, faction: horde}\nitems:\n  - {id: 4, sell_price: -1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			check.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("houses:\n  - {id: 9, faction: horde}\n"), 0o600))

	c, err := Load(path)
	assert.NoError(t, err)
	check.Equal(t, auction.HouseID(9), c.Houses()[0].ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	check.True(t, errors.Is(err, os.ErrNotExist))

	c, err = Load("")
	assert.NoError(t, err)
	check.Equal(t, 3, len(c.Houses()))
}
