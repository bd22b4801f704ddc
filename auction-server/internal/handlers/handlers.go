package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
	"github.com/aaronwang/auction-house/auction-server/internal/service"
	"github.com/aaronwang/auction-house/shared/models"
)

// Balances reads player balances. Optional.
type Balances interface {
	Balance(ctx context.Context, p auction.PlayerID) (balance, held int64, err error)
}

// Handler contains HTTP request handlers
type Handler struct {
	world    *service.World
	balances Balances
	log      *slog.Logger
}

// NewHandler creates a new HTTP handler. balances may be nil.
func NewHandler(world *service.World, balances Balances, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		world:    world,
		balances: balances,
		log:      logger.With("component", "http"),
	}
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/houses", h.ListHouses).Methods("GET")
	api.HandleFunc("/houses/{house}/deposit", h.GetDeposit).Methods("GET")
	api.HandleFunc("/houses/{house}/auctions", h.Browse).Methods("GET")
	api.HandleFunc("/houses/{house}/auctions", h.CreateListing).Methods("POST")
	api.HandleFunc("/houses/{house}/auctions/{id}", h.GetAuction).Methods("GET")
	api.HandleFunc("/houses/{house}/auctions/{id}", h.CancelListing).Methods("DELETE")
	api.HandleFunc("/houses/{house}/auctions/{id}/bid", h.PlaceBid).Methods("POST")
	api.HandleFunc("/houses/{house}/auctions/{id}/buyout", h.Buyout).Methods("POST")
	api.HandleFunc("/houses/{house}/owners/{player}/auctions", h.ListByOwner).Methods("GET")
	api.HandleFunc("/houses/{house}/bidders/{player}/auctions", h.ListByBidder).Methods("GET")
	api.HandleFunc("/players/{player}/balance", h.GetBalance).Methods("GET")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.world.Done():
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "stopping",
			"service": "auction-server",
		})
		return
	default:
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "auction-server",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ListHouses returns every configured auction house.
func (h *Handler) ListHouses(w http.ResponseWriter, r *http.Request) {
	houses, err := service.Call(r.Context(), h.world, func(_ context.Context, d *auction.Directory) ([]auction.House, error) {
		return d.Houses(), nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]models.House, 0, len(houses))
	for _, hs := range houses {
		out = append(out, models.House{
			ID:                 uint32(hs.ID),
			Name:               hs.Name,
			Faction:            string(hs.Faction),
			DepositPercent:     hs.DepositPercent,
			CutPercent:         hs.CutPercent,
			MinDurationMinutes: int(hs.MinDuration / time.Minute),
			MaxDurationMinutes: int(hs.MaxDuration / time.Minute),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// GetDeposit quotes the deposit for a prospective listing.
func (h *Handler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	house, ok := houseVar(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	entry, err1 := parseUint(q.Get("entry"))
	count, err2 := parseUint(q.Get("count"))
	minutes, err3 := strconv.Atoi(q.Get("duration_minutes"))
	if err := errors.Join(err1, err2, err3); err != nil {
		respondError(w, http.StatusBadRequest, "entry, count and duration_minutes are required")
		return
	}

	item := auction.Item{TemplateID: entry, Count: count}
	deposit, err := service.Call(r.Context(), h.world, func(_ context.Context, d *auction.Directory) (int64, error) {
		return d.ComputeDeposit(house, time.Duration(minutes)*time.Minute, item)
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deposit": deposit})
}

// Browse searches a house.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	house, ok := houseVar(w, r)
	if !ok {
		return
	}
	query, err := parseBrowseQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	type page struct {
		entries []auction.Entry
		total   int
		econ    auction.Economy
	}
	res, err := service.Call(r.Context(), h.world, func(_ context.Context, d *auction.Directory) (page, error) {
		entries, total, err := d.Browse(house, query)
		return page{entries, total, d.Economy()}, err
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPage(res.entries, res.total, res.econ))
}

// GetAuction returns one auction.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	house, id, ok := auctionVars(w, r)
	if !ok {
		return
	}
	view, err := service.Call(r.Context(), h.world, func(_ context.Context, d *auction.Directory) (models.Auction, error) {
		e, err := d.Get(house, id)
		if err != nil {
			return models.Auction{}, err
		}
		return toAuction(e, d.Economy()), nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CreateListing puts an item up for auction.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	house, ok := houseVar(w, r)
	if !ok {
		return
	}
	var req models.ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Seller == 0 {
		respondError(w, http.StatusBadRequest, "Seller is required")
		return
	}

	listing := auction.ListingRequest{
		HouseID: house,
		Seller:  auction.PlayerID(req.Seller),
		Item: auction.Item{
			GUID:             req.Item.GUID,
			TemplateID:       req.Item.Entry,
			Count:            req.Item.Count,
			RandomPropertyID: req.Item.RandomPropertyID,
		},
		Duration: time.Duration(req.DurationMinutes) * time.Minute,
		StartBid: req.StartBid,
		Buyout:   req.Buyout,
		Deposit:  req.Deposit,
	}
	view, err := service.Call(r.Context(), h.world, func(ctx context.Context, d *auction.Directory) (models.Auction, error) {
		id, err := d.CreateListing(ctx, listing)
		if err != nil {
			return models.Auction{}, err
		}
		e, err := d.Get(house, id)
		if err != nil {
			return models.Auction{}, err
		}
		return toAuction(e, d.Economy()), nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// CancelListing withdraws an auction without bids.
func (h *Handler) CancelListing(w http.ResponseWriter, r *http.Request) {
	house, id, ok := auctionVars(w, r)
	if !ok {
		return
	}
	seller, err := parseUint(r.URL.Query().Get("seller"))
	if err != nil || seller == 0 {
		respondError(w, http.StatusBadRequest, "Seller is required")
		return
	}
	err = h.world.Do(r.Context(), func(ctx context.Context, d *auction.Directory) error {
		return d.Cancel(ctx, house, id, auction.PlayerID(seller))
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceBid handles bid placement requests
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	house, id, ok := auctionVars(w, r)
	if !ok {
		return
	}
	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Bidder == 0 {
		respondError(w, http.StatusBadRequest, "Bidder is required")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	resp, err := service.Call(r.Context(), h.world, func(ctx context.Context, d *auction.Directory) (models.BidResponse, error) {
		outcome, err := d.PlaceBid(ctx, house, id, auction.PlayerID(req.Bidder), req.Amount)
		if err != nil {
			return models.BidResponse{}, err
		}
		return bidResponse(d, house, id, outcome), nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Buyout buys an auction at its buyout price.
func (h *Handler) Buyout(w http.ResponseWriter, r *http.Request) {
	house, id, ok := auctionVars(w, r)
	if !ok {
		return
	}
	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Bidder == 0 {
		respondError(w, http.StatusBadRequest, "Bidder is required")
		return
	}

	resp, err := service.Call(r.Context(), h.world, func(ctx context.Context, d *auction.Directory) (models.BidResponse, error) {
		outcome, err := d.Buyout(ctx, house, id, auction.PlayerID(req.Bidder))
		if err != nil {
			return models.BidResponse{}, err
		}
		return bidResponse(d, house, id, outcome), nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListByOwner lists a player's own auctions at a house.
func (h *Handler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	h.listByPlayer(w, r, (*auction.Directory).ListByOwner)
}

// ListByBidder lists the auctions a player is winning at a house.
func (h *Handler) ListByBidder(w http.ResponseWriter, r *http.Request) {
	h.listByPlayer(w, r, (*auction.Directory).ListByBidder)
}

type listFunc func(*auction.Directory, auction.HouseID, auction.PlayerID) ([]auction.Entry, int, error)

func (h *Handler) listByPlayer(w http.ResponseWriter, r *http.Request, list listFunc) {
	house, ok := houseVar(w, r)
	if !ok {
		return
	}
	player, err := parseUint(mux.Vars(r)["player"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player id")
		return
	}
	page, err := service.Call(r.Context(), h.world, func(_ context.Context, d *auction.Directory) (models.AuctionPage, error) {
		entries, total, err := list(d, house, auction.PlayerID(player))
		if err != nil {
			return models.AuctionPage{}, err
		}
		return toPage(entries, total, d.Economy()), nil
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetBalance returns a player's spendable and held money.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if h.balances == nil {
		respondError(w, http.StatusNotFound, "Balances are not available")
		return
	}
	player, err := parseUint(mux.Vars(r)["player"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player id")
		return
	}
	balance, held, err := h.balances.Balance(r.Context(), auction.PlayerID(player))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"balance": balance, "held": held})
}

func bidResponse(d *auction.Directory, house auction.HouseID, id uint32, outcome auction.BidOutcome) models.BidResponse {
	resp := models.BidResponse{Outcome: outcome.String()}
	if outcome == auction.BidPlaced {
		if e, err := d.Get(house, id); err == nil {
			view := toAuction(e, d.Economy())
			resp.Auction = &view
		}
	}
	return resp
}

func toAuction(e auction.Entry, econ auction.Economy) models.Auction {
	return models.Auction{
		ID:               e.ID,
		HouseID:          uint32(e.HouseID),
		ItemGUID:         e.ItemGUID,
		ItemEntry:        e.ItemTemplate,
		ItemCount:        e.ItemCount,
		RandomPropertyID: e.RandomPropertyID,
		Owner:            uint32(e.Owner),
		Bidder:           uint32(e.Bidder),
		StartBid:         e.StartBid,
		Bid:              e.Bid,
		MinNextBid:       e.MinNextBid(econ),
		Buyout:           e.Buyout,
		Deposit:          e.Deposit,
		ExpiresAt:        e.ExpiresAt,
	}
}

func toPage(entries []auction.Entry, total int, econ auction.Economy) models.AuctionPage {
	page := models.AuctionPage{Auctions: make([]models.Auction, 0, len(entries)), Total: total}
	for _, e := range entries {
		page.Auctions = append(page.Auctions, toAuction(e, econ))
	}
	return page
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, models.ErrorResponse{Error: message})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("error", err.Error()))
		respondJSON(w, status, models.ErrorResponse{Error: http.StatusText(status)})
		return
	}
	respondJSON(w, status, models.ErrorResponse{Error: err.Error(), Kind: auction.KindOf(err).String()})
}

// loggingMiddleware logs all HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Info("request",
			slog.String("method", r.Method),
			slog.String("uri", r.RequestURI),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers (for development)
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
