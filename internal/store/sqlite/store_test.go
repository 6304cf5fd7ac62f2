package sqlite

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"tradebotv1/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("writer init failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("reader init failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return w, r
}

func kline(openTime int64, close string) model.Kline {
	return model.Kline{
		Symbol:   "ADAUSDC",
		TF:       "1h",
		OpenTime: openTime,
		Open:     d(close),
		High:     d(close),
		Low:      d(close),
		Close:    d(close),
		Volume:   d("1000"),
	}
}

func TestKlineRoundTrip(t *testing.T) {
	w, r := newTestStore(t)

	in := []model.Kline{
		kline(3000, "0.52"),
		kline(1000, "0.50"),
		kline(2000, "0.51"),
	}
	n, err := w.InsertKlines(in)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	out, err := r.ReadKlines("ADAUSDC", "1h", 0, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("read = %d rows, want 3", len(out))
	}
	// Always ascending by open_time, regardless of insert order.
	for i, wantTime := range []int64{1000, 2000, 3000} {
		if out[i].OpenTime != wantTime {
			t.Errorf("row %d open_time = %d, want %d", i, out[i].OpenTime, wantTime)
		}
	}
	if !out[0].Close.Equal(d("0.50")) {
		t.Errorf("close = %s, want 0.50", out[0].Close)
	}
}

func TestKlineReplaceAndRange(t *testing.T) {
	w, r := newTestStore(t)

	if _, err := w.InsertKlines([]model.Kline{kline(1000, "0.50"), kline(2000, "0.51")}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	// Re-importing the same open_time replaces the row.
	if _, err := w.InsertKlines([]model.Kline{kline(2000, "0.99")}); err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}

	out, err := r.ReadKlines("ADAUSDC", "1h", 2000, 2000)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("ranged read = %d rows, want 1", len(out))
	}
	if !out[0].Close.Equal(d("0.99")) {
		t.Errorf("close after replace = %s, want 0.99", out[0].Close)
	}

	// Other series stay invisible.
	out, err = r.ReadKlines("BTCUSDT", "1h", 0, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("other symbol = %d rows, want 0", len(out))
	}
}

func TestRunsAndFills(t *testing.T) {
	w, _ := newTestStore(t)

	rec := RunRecord{
		RunID: "bt-ADAUSDC-1", Symbol: "ADAUSDC", TF: "1h", Strategy: "StopGrid",
		Bars: 100, StartCash: "10000", FinalValue: "10099.5", CreatedAt: 1700000000,
	}
	if err := w.InsertRun(rec); err != nil {
		t.Fatalf("insert run failed: %v", err)
	}
	fills := []model.Order{
		{OrderID: 2, Symbol: "ADAUSDC", Side: model.SideSell, StopPrice: d("0.45"), ExecutedQty: d("1000"), CummulativeQuoteQty: d("450"), UpdateTime: 3000},
		{OrderID: 1, Symbol: "ADAUSDC", Side: model.SideBuy, StopPrice: d("0.50"), ExecutedQty: d("1000"), CummulativeQuoteQty: d("500"), UpdateTime: 2000},
	}
	if err := w.InsertFills(rec.RunID, fills); err != nil {
		t.Fatalf("insert fills failed: %v", err)
	}

	runs, err := w.ListRuns(0)
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].FinalValue != "10099.5" {
		t.Fatalf("runs = %+v, want one with final value 10099.5", runs)
	}

	rows, err := w.ListFills(rec.RunID)
	if err != nil {
		t.Fatalf("list fills failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("fills = %d rows, want 2", len(rows))
	}
	// Ascending order_id regardless of insert order.
	if rows[0].OrderID != 1 || rows[1].OrderID != 2 {
		t.Errorf("fill order ids = %d, %d, want 1, 2", rows[0].OrderID, rows[1].OrderID)
	}
	if rows[0].QuoteQty != "500" {
		t.Errorf("quote qty = %s, want 500", rows[0].QuoteQty)
	}

	summary, err := w.ProfitSummary()
	if err != nil {
		t.Fatalf("profit summary failed: %v", err)
	}
	if len(summary) != 1 || summary[0].Runs != 1 || summary[0].FinalValue != "10099.5" {
		t.Errorf("summary = %+v", summary)
	}

	if err := w.ResetResults(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	runs, err = w.ListRuns(0)
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs after reset = %d, want 0", len(runs))
	}
}

func TestPairConfigCRUD(t *testing.T) {
	w, _ := newTestStore(t)

	pc := model.PairConfig{Symbol: "ADAUSDC", TF: "1h", Cash: "10000", Commission: "0.001", Enabled: true}
	if err := w.UpsertPairConfig(pc); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := w.GetPairConfig("ADAUSDC")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Cash != "10000" || !got.Enabled {
		t.Errorf("config = %+v", got)
	}

	// Upsert overwrites in place.
	pc.Cash = "20000"
	pc.Enabled = false
	if err := w.UpsertPairConfig(pc); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	got, err = w.GetPairConfig("ADAUSDC")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Cash != "20000" || got.Enabled {
		t.Errorf("config after update = %+v", got)
	}

	list, err := w.ListPairConfigs()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %d rows, want 1", len(list))
	}

	if err := w.DeletePairConfig("ADAUSDC"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := w.DeletePairConfig("ADAUSDC"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("delete missing err = %v, want sql.ErrNoRows", err)
	}
	if _, err := w.GetPairConfig("ADAUSDC"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("get missing err = %v, want sql.ErrNoRows", err)
	}
}
