package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
	"github.com/aaronwang/auction-house/auction-server/internal/service"
)

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func houseVar(w http.ResponseWriter, r *http.Request) (auction.HouseID, bool) {
	house, err := parseUint(mux.Vars(r)["house"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid house id")
		return 0, false
	}
	return auction.HouseID(house), true
}

func auctionVars(w http.ResponseWriter, r *http.Request) (auction.HouseID, uint32, bool) {
	house, ok := houseVar(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := parseUint(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid auction id")
		return 0, 0, false
	}
	return house, id, true
}

// parseBrowseQuery reads browse filters from the query string. usable=true
// keeps items whose required level is at most level.
func parseBrowseQuery(r *http.Request) (auction.BrowseQuery, error) {
	v := r.URL.Query()
	q := auction.BrowseQuery{Name: v.Get("name")}

	optional := func(key string) (*uint32, error) {
		s := v.Get(key)
		if s == "" {
			return nil, nil
		}
		n, err := parseUint(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s", key)
		}
		return &n, nil
	}
	var err error
	if q.InventoryType, err = optional("inventory_type"); err != nil {
		return q, err
	}
	if q.Class, err = optional("class"); err != nil {
		return q, err
	}
	if q.SubClass, err = optional("subclass"); err != nil {
		return q, err
	}
	if q.MinQuality, err = optional("quality"); err != nil {
		return q, err
	}

	levelMin, err := optional("level_min")
	if err != nil {
		return q, err
	}
	if levelMin != nil {
		q.LevelMin = *levelMin
	}
	levelMax, err := optional("level_max")
	if err != nil {
		return q, err
	}
	if levelMax != nil {
		q.LevelMax = *levelMax
	}

	if s := v.Get("skip"); s != "" {
		if q.Skip, err = strconv.Atoi(s); err != nil || q.Skip < 0 {
			return q, errors.New("invalid skip")
		}
	}

	if v.Get("usable") == "true" {
		level, err := optional("level")
		if err != nil || level == nil {
			return q, errors.New("usable requires level")
		}
		q.Usable = true
		q.CanUse = func(tpl auction.ItemTemplate) bool { return tpl.RequiredLevel <= *level }
	}
	return q, nil
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, auction.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, auction.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrHasBids),
		errors.Is(err, auction.ErrItemAlreadyListed),
		errors.Is(err, auction.ErrAuctionExpired):
		return http.StatusConflict
	case errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable
	}
	switch auction.KindOf(err) {
	case auction.KindValidation:
		return http.StatusBadRequest
	case auction.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
