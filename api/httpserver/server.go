package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"heimdall/domain/orderbook"
	"heimdall/service"
)

// Server is the order entry API. Market data endpoints live in the
// marketdata package; this one only takes commands and answers order
// queries.
type Server struct {
	svc *service.OrderService
	log *zap.Logger
}

func New(svc *service.OrderService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

type orderRequest struct {
	Side  string `json:"side"`
	Type  string `json:"type"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
}

type orderResponse struct {
	OrderID uint64 `json:"order_id"`
	Status  string `json:"status"`
}

type orderView struct {
	OrderID   uint64 `json:"order_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	Filled    int64  `json:"filled"`
	Remaining int64  `json:"remaining"`
	Status    string `json:"status"`
}

// Register mounts the order endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/orders", s.handleOrders)
	mux.HandleFunc("/orders/", s.handleOrderByID)
	mux.HandleFunc("/stats", s.handleStats)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	side, otype, err := parseOrderKind(req.Side, req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	o, err := s.svc.PlaceOrder(side, otype, req.Price, req.Qty)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, orderResponse{OrderID: o.ID, Status: "accepted"})
}

// handleOrderByID serves GET (lookup), DELETE (cancel) and PUT
// (replace) on /orders/{id}.
func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/orders/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad order id"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		o := s.svc.LookupOrder(id)
		if o == nil {
			writeError(w, http.StatusNotFound, errors.New("order not found"))
			return
		}
		writeJSON(w, http.StatusOK, toView(o))

	case http.MethodDelete:
		if err := s.svc.CancelOrder(id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, orderResponse{OrderID: id, Status: "cancel_accepted"})

	case http.MethodPut:
		var req orderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
		side, otype, err := parseOrderKind(req.Side, req.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		o, err := s.svc.ReplaceOrder(id, side, otype, req.Price, req.Qty)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, orderResponse{OrderID: o.ID, Status: "accepted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Statistics())
}

func parseOrderKind(side, otype string) (orderbook.Side, orderbook.OrderType, error) {
	var s orderbook.Side
	switch strings.ToLower(side) {
	case "buy", "bid", "b":
		s = orderbook.Buy
	case "sell", "ask", "s":
		s = orderbook.Sell
	default:
		return 0, 0, fmt.Errorf("unknown side %q", side)
	}

	var t orderbook.OrderType
	switch strings.ToLower(otype) {
	case "limit", "lmt":
		t = orderbook.Limit
	case "market", "mkt":
		t = orderbook.Market
	default:
		return 0, 0, fmt.Errorf("unknown order type %q", otype)
	}
	return s, t, nil
}

func toView(o *orderbook.Order) orderView {
	return orderView{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side.String(),
		Type:      o.Type.String(),
		Price:     o.Price,
		Qty:       o.Qty,
		Filled:    o.Filled(),
		Remaining: o.Remaining(),
		Status:    o.Status().String(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBadOrder), errors.Is(err, service.ErrWrongSymbol):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
