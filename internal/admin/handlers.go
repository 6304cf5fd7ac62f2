package admin

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tradebotv1/internal/model"
	sqlitestore "tradebotv1/internal/store/sqlite"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Code")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RegisterRoutes registers all dashboard routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, store *sqlitestore.Writer, reader *sqlitestore.Reader, hub *Hub, totpSecret string, log *slog.Logger) {
	// WebSocket event stream
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade failed", slog.String("err", err.Error()))
			return
		}
		hub.HandleWS(conn)
	})

	// Pair configs: GET list, POST upsert, DELETE by symbol
	upsert := RequireTOTP(totpSecret, log, func(w http.ResponseWriter, r *http.Request) {
		handleUpsertPair(w, r, store, log)
	})
	remove := RequireTOTP(totpSecret, log, func(w http.ResponseWriter, r *http.Request) {
		handleDeletePair(w, r, store, log)
	})
	mux.HandleFunc("/api/pairs", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			pairs, err := store.ListPairConfigs()
			if err != nil {
				log.Error("list pairs failed", slog.String("err", err.Error()))
				writeError(w, http.StatusInternalServerError, "list pairs failed")
				return
			}
			if pairs == nil {
				pairs = []model.PairConfig{}
			}
			writeJSON(w, pairs)
		case http.MethodPost:
			upsert(w, r)
		case http.MethodDelete:
			remove(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// Backtest runs, newest first
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		runs, err := store.ListRuns(limit)
		if err != nil {
			log.Error("list runs failed", slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []sqlitestore.RunRecord{}
		}
		writeJSON(w, runs)
	})

	// One run's fills
	mux.HandleFunc("/api/fills", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		runID := r.URL.Query().Get("run_id")
		if runID == "" {
			writeError(w, http.StatusBadRequest, "run_id required")
			return
		}
		fills, err := store.ListFills(runID)
		if err != nil {
			log.Error("list fills failed", slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, "list fills failed")
			return
		}
		if fills == nil {
			fills = []sqlitestore.FillRow{}
		}
		writeJSON(w, fills)
	})

	// Profit summary per symbol
	mux.HandleFunc("/api/profit", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		summary, err := store.ProfitSummary()
		if err != nil {
			log.Error("profit summary failed", slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, "profit summary failed")
			return
		}
		if summary == nil {
			summary = []sqlitestore.ProfitRow{}
		}
		writeJSON(w, summary)
	})

	// Historical klines for charting
	mux.HandleFunc("/api/klines", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		symbol := r.URL.Query().Get("symbol")
		tf := r.URL.Query().Get("tf")
		if symbol == "" || tf == "" {
			writeError(w, http.StatusBadRequest, "symbol and tf required")
			return
		}
		from, err := parseMS(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
		to, err := parseMS(r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
		klines, err := reader.ReadKlines(symbol, tf, from, to)
		if err != nil {
			log.Error("read klines failed", slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, "read klines failed")
			return
		}
		if klines == nil {
			klines = []model.Kline{}
		}
		writeJSON(w, klines)
	})

	// Health check
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		writeJSON(w, map[string]any{
			"status":     "ok",
			"ws_clients": hub.ClientCount(),
		})
	})
}

func handleUpsertPair(w http.ResponseWriter, r *http.Request, store *sqlitestore.Writer, log *slog.Logger) {
	var pc model.PairConfig
	if err := json.NewDecoder(r.Body).Decode(&pc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, _, ok := model.SplitSymbol(pc.Symbol); !ok {
		writeError(w, http.StatusBadRequest, "unrecognized symbol")
		return
	}
	if pc.TF == "" {
		writeError(w, http.StatusBadRequest, "tf required")
		return
	}
	if cash, err := decimal.NewFromString(pc.Cash); err != nil || !cash.IsPositive() {
		writeError(w, http.StatusBadRequest, "cash must be a positive decimal")
		return
	}
	if comm, err := decimal.NewFromString(pc.Commission); err != nil || comm.IsNegative() {
		writeError(w, http.StatusBadRequest, "commission must be a non-negative decimal")
		return
	}
	if err := store.UpsertPairConfig(pc); err != nil {
		log.Error("upsert pair failed", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "upsert pair failed")
		return
	}
	log.Info("pair config saved", slog.String("symbol", pc.Symbol), slog.String("tf", pc.TF))
	writeJSON(w, map[string]string{"status": "ok"})
}

func handleDeletePair(w http.ResponseWriter, r *http.Request, store *sqlitestore.Writer, log *slog.Logger) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	if err := store.DeletePairConfig(symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unknown symbol")
			return
		}
		log.Error("delete pair failed", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "delete pair failed")
		return
	}
	log.Info("pair config deleted", slog.String("symbol", symbol))
	writeJSON(w, map[string]string{"status": "ok"})
}

func parseMS(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
