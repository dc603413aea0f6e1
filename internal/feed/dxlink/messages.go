package dxlink

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire frame types on the control channel (0) and feed channels.
const (
	frameSetup            = "SETUP"
	frameAuth             = "AUTH"
	frameAuthState        = "AUTH_STATE"
	frameChannelRequest   = "CHANNEL_REQUEST"
	frameChannelOpened    = "CHANNEL_OPENED"
	frameFeedSetup        = "FEED_SETUP"
	frameFeedConfig       = "FEED_CONFIG"
	frameFeedSubscription = "FEED_SUBSCRIPTION"
	frameFeedData         = "FEED_DATA"
	frameKeepalive        = "KEEPALIVE"
	frameError            = "ERROR"
)

// Feed event types carried in FEED_DATA frames.
const (
	EventQuote   = "Quote"
	EventTrade   = "Trade"
	EventSummary = "Summary"
)

// COMPACT field orders negotiated in FEED_SETUP. Field position is the
// schema; the upstream sends no keys.
var acceptEventFields = map[string][]string{
	EventQuote:   {"eventSymbol", "bidPrice", "askPrice", "bidSize", "askSize"},
	EventTrade:   {"eventSymbol", "price", "dayVolume", "time"},
	EventSummary: {"eventSymbol", "dayOpenPrice", "dayHighPrice", "dayLowPrice", "prevDayClosePrice"},
}

// frame is the generic wire envelope; Type and Channel are present on every
// frame, the rest depends on Type.
type frame struct {
	Type    string          `json:"type"`
	Channel int             `json:"channel"`
	Raw     json.RawMessage `json:"-"`
}

type setupFrame struct {
	Type                   string `json:"type"`
	Channel                int    `json:"channel"`
	Version                string `json:"version"`
	KeepaliveTimeout       int    `json:"keepaliveTimeout"`
	AcceptKeepaliveTimeout int    `json:"acceptKeepaliveTimeout"`
}

type authFrame struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	Token   string `json:"token"`
}

type authStateFrame struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	State   string `json:"state"`
}

type channelRequestFrame struct {
	Type       string            `json:"type"`
	Channel    int               `json:"channel"`
	Service    string            `json:"service"`
	Parameters map[string]string `json:"parameters"`
}

type feedSetupFrame struct {
	Type                    string              `json:"type"`
	Channel                 int                 `json:"channel"`
	AcceptAggregationPeriod float64             `json:"acceptAggregationPeriod"`
	AcceptDataFormat        string              `json:"acceptDataFormat"`
	AcceptEventFields       map[string][]string `json:"acceptEventFields"`
}

type subscriptionEntry struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type feedSubscriptionFrame struct {
	Type    string              `json:"type"`
	Channel int                 `json:"channel"`
	Add     []subscriptionEntry `json:"add,omitempty"`
	Remove  []subscriptionEntry `json:"remove,omitempty"`
}

type keepaliveFrame struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
}

type feedDataFrame struct {
	Type    string            `json:"type"`
	Channel int               `json:"channel"`
	Data    []json.RawMessage `json:"data"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Event is the tagged union delivered on the client's event channel after
// a FEED_DATA frame is decoded.
type Event struct {
	Kind    string // EventQuote, EventTrade or EventSummary
	Quote   *QuoteEvent
	Trade   *TradeEvent
	Summary *SummaryEvent
}

// QuoteEvent is a top-of-book update.
type QuoteEvent struct {
	Symbol  string
	Bid     float64
	Ask     float64
	BidSize float64
	AskSize float64
}

// TradeEvent is a last-trade update.
type TradeEvent struct {
	Symbol    string
	Price     float64
	DayVolume int64
	Time      time.Time
}

// SummaryEvent is a daily aggregate update.
type SummaryEvent struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	PrevClose float64
}

// decodeFeedData expands one COMPACT FEED_DATA frame into events. The
// payload alternates [eventType, flatValues, eventType, flatValues, ...];
// each flat array holds a fixed field count per record and may batch
// multiple records back to back.
func decodeFeedData(f *feedDataFrame) ([]Event, error) {
	if len(f.Data)%2 != 0 {
		return nil, fmt.Errorf("compact feed data has odd element count %d", len(f.Data))
	}

	var events []Event
	for i := 0; i < len(f.Data); i += 2 {
		var kind string
		if err := json.Unmarshal(f.Data[i], &kind); err != nil {
			return nil, fmt.Errorf("decode event type: %w", err)
		}

		var values []json.RawMessage
		if err := json.Unmarshal(f.Data[i+1], &values); err != nil {
			return nil, fmt.Errorf("decode %s values: %w", kind, err)
		}

		fields, known := acceptEventFields[kind]
		if !known {
			// Unsolicited event type: skip, keep the session alive.
			continue
		}
		width := len(fields)
		if width == 0 || len(values)%width != 0 {
			return nil, fmt.Errorf("%s record width %d does not divide %d values", kind, width, len(values))
		}

		for off := 0; off < len(values); off += width {
			ev, err := decodeRecord(kind, values[off:off+width])
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}

	return events, nil
}

func decodeRecord(kind string, rec []json.RawMessage) (Event, error) {
	switch kind {
	case EventQuote:
		q := &QuoteEvent{}
		if err := scanRecord(rec, &q.Symbol, &q.Bid, &q.Ask, &q.BidSize, &q.AskSize); err != nil {
			return Event{}, fmt.Errorf("decode Quote record: %w", err)
		}
		return Event{Kind: EventQuote, Quote: q}, nil

	case EventTrade:
		t := &TradeEvent{}
		var volume float64
		var millis float64
		if err := scanRecord(rec, &t.Symbol, &t.Price, &volume, &millis); err != nil {
			return Event{}, fmt.Errorf("decode Trade record: %w", err)
		}
		t.DayVolume = int64(volume)
		t.Time = time.UnixMilli(int64(millis))
		return Event{Kind: EventTrade, Trade: t}, nil

	case EventSummary:
		s := &SummaryEvent{}
		if err := scanRecord(rec, &s.Symbol, &s.Open, &s.High, &s.Low, &s.PrevClose); err != nil {
			return Event{}, fmt.Errorf("decode Summary record: %w", err)
		}
		return Event{Kind: EventSummary, Summary: s}, nil
	}

	return Event{}, fmt.Errorf("unknown event type %q", kind)
}

// scanRecord unmarshals positional values into the given destinations.
// Numeric fields tolerate null and "NaN", which the upstream emits for
// unpopulated book sides.
func scanRecord(rec []json.RawMessage, dests ...interface{}) error {
	if len(rec) != len(dests) {
		return fmt.Errorf("record has %d fields, want %d", len(rec), len(dests))
	}

	for i, raw := range rec {
		switch dest := dests[i].(type) {
		case *string:
			if err := json.Unmarshal(raw, dest); err != nil {
				return fmt.Errorf("field %d: %w", i, err)
			}
		case *float64:
			s := string(raw)
			if s == "null" || s == `"NaN"` {
				*dest = 0
				continue
			}
			if err := json.Unmarshal(raw, dest); err != nil {
				return fmt.Errorf("field %d: %w", i, err)
			}
		default:
			return fmt.Errorf("field %d: unsupported destination type", i)
		}
	}

	return nil
}
