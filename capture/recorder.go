package capture

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	clobWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	recorderPingInterval = 20 * time.Second
	recorderPingTimeout  = 10 * time.Second
	recorderDialTimeout  = 5 * time.Second

	// flush the gzip stream every this many events so a crash loses little
	flushEvery = 100
)

type (
	// Recorder streams every L2 orderbook event for one market window into a
	// gzip-compressed JSONL file under {dataDir}/l2/{slug}.jsonl.gz.
	Recorder struct {
		logger zerolog.Logger
		slug   string
		path   string
		wsURL  string

		mtx    sync.Mutex
		file   *os.File
		gz     *gzip.Writer
		counts struct {
			total, books, ticks, trades int
		}
	}

	// l2Event is one JSONL line. Book and tick events carry bids/asks; trade
	// events carry price/size/side instead.
	l2Event struct {
		Ts    float64      `json:"ts"`
		Asset string       `json:"asset"`
		Event string       `json:"event"`
		Bids  [][2]float64 `json:"bids,omitempty"`
		Asks  [][2]float64 `json:"asks,omitempty"`
		Price float64      `json:"price,omitempty"`
		Size  float64      `json:"size,omitempty"`
		Side  string       `json:"side,omitempty"`
	}

	clobLevel struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	}

	clobChange struct {
		AssetID string `json:"asset_id"`
		BestBid string `json:"best_bid"`
		BestAsk string `json:"best_ask"`
	}

	// clobMessage is one event from the market channel. Frames arrive both
	// as single objects and as arrays of these.
	clobMessage struct {
		EventType    string       `json:"event_type"`
		AssetID      string       `json:"asset_id"`
		Bids         []clobLevel  `json:"bids"`
		Asks         []clobLevel  `json:"asks"`
		Price        string       `json:"price"`
		Size         string       `json:"size"`
		Side         string       `json:"side"`
		PriceChanges []clobChange `json:"price_changes"`
		Changes      []clobChange `json:"changes"`
	}

	clobSubscription struct {
		AssetsIDs []string `json:"assets_ids"`
		Type      string   `json:"type"`
	}
)

// NewRecorder opens the output file for slug in append mode. wsURL overrides
// the production CLOB websocket; pass "" outside tests.
func NewRecorder(logger zerolog.Logger, dataDir, slug, wsURL string) (*Recorder, error) {
	if wsURL == "" {
		wsURL = clobWSURL
	}

	dir := filepath.Join(dataDir, "l2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, slug+".jsonl.gz")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		logger: logger.With().Str("module", "recorder").Str("slug", slug).Logger(),
		slug:   slug,
		path:   path,
		wsURL:  wsURL,
		file:   file,
		gz:     gzip.NewWriter(file),
	}, nil
}

// Path returns the output file location.
func (r *Recorder) Path() string {
	return r.path
}

// Record connects to the market channel, subscribes to both outcome tokens
// and writes every book, tick and trade event until ctx is done or the
// stream fails.
func (r *Recorder) Record(ctx context.Context, upToken, downToken string) error {
	labels := map[string]string{upToken: "up", downToken: "dn"}

	dialer := websocket.Dialer{HandshakeTimeout: recorderDialTimeout}
	conn, _, err := dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return fmt.Errorf("clob websocket dial failed: %w", err)
	}
	defer conn.Close()

	sub := clobSubscription{AssetsIDs: []string{upToken, downToken}, Type: "market"}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("clob subscription failed: %w", err)
	}
	r.logger.Info().Msg("recording market channel")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(recorderPingInterval + recorderPingTimeout))
	})

	go func() {
		ticker := time.NewTicker(recorderPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(
					websocket.PingMessage, nil, time.Now().Add(recorderPingTimeout),
				); err != nil {
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(recorderPingInterval + recorderPingTimeout)); err != nil {
			return err
		}
		_, bz, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for _, msg := range decodeMessages(bz) {
			r.handleMessage(msg, labels)
		}
	}
}

// decodeMessages accepts both a single event object and an array of them.
func decodeMessages(bz []byte) []clobMessage {
	var messages []clobMessage
	if err := json.Unmarshal(bz, &messages); err == nil {
		return messages
	}

	var single clobMessage
	if err := json.Unmarshal(bz, &single); err == nil && single.EventType != "" {
		return []clobMessage{single}
	}
	return nil
}

func (r *Recorder) handleMessage(msg clobMessage, labels map[string]string) {
	switch msg.EventType {
	case "book":
		label, ok := labels[msg.AssetID]
		if !ok {
			return
		}
		r.writeEvent(l2Event{
			Asset: label,
			Event: "book",
			Bids:  parseLevels(msg.Bids),
			Asks:  parseLevels(msg.Asks),
		})
		r.countEvent("book")

	case "last_trade_price":
		label, ok := labels[msg.AssetID]
		if !ok {
			return
		}
		price, err1 := strconv.ParseFloat(msg.Price, 64)
		size, err2 := strconv.ParseFloat(msg.Size, 64)
		if err1 != nil || err2 != nil {
			return
		}
		r.writeEvent(l2Event{
			Asset: label,
			Event: "trade",
			Price: price,
			Size:  size,
			Side:  msg.Side,
		})
		r.countEvent("trade")

	case "price_change":
		changes := msg.PriceChanges
		if len(changes) == 0 {
			changes = msg.Changes
		}
		for _, change := range changes {
			label, ok := labels[change.AssetID]
			if !ok {
				continue
			}
			bid, err1 := strconv.ParseFloat(change.BestBid, 64)
			ask, err2 := strconv.ParseFloat(change.BestAsk, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			// price_change carries best bid/ask only; record it as a
			// single-level book for tick tracking.
			r.writeEvent(l2Event{
				Asset: label,
				Event: "tick",
				Bids:  [][2]float64{{bid, 0}},
				Asks:  [][2]float64{{ask, 0}},
			})
			r.countEvent("tick")
		}
	}
}

func parseLevels(levels []clobLevel) [][2]float64 {
	out := make([][2]float64, 0, len(levels))
	for _, lvl := range levels {
		price, err1 := strconv.ParseFloat(lvl.Price, 64)
		size, err2 := strconv.ParseFloat(lvl.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, [2]float64{price, size})
	}
	return out
}

func (r *Recorder) writeEvent(event l2Event) {
	event.Ts = float64(time.Now().UnixMilli()) / 1000

	bz, err := json.Marshal(event)
	if err != nil {
		return
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.gz.Write(bz)
	r.gz.Write([]byte{'\n'})
	r.counts.total++
	if r.counts.total%flushEvery == 0 {
		r.gz.Flush()
	}
}

func (r *Recorder) countEvent(kind string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	switch kind {
	case "book":
		r.counts.books++
	case "tick":
		r.counts.ticks++
	case "trade":
		r.counts.trades++
	}
}

// EventCount returns the total number of recorded events.
func (r *Recorder) EventCount() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.counts.total
}

// Close flushes and closes the output file.
func (r *Recorder) Close() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.logger.Info().
		Int("events", r.counts.total).
		Int("books", r.counts.books).
		Int("ticks", r.counts.ticks).
		Int("trades", r.counts.trades).
		Msg("recorder closed")

	if err := r.gz.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
