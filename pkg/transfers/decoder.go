// Package transfers decodes raw ERC-20 Transfer logs into typed events.
package transfers

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ava-labs/libevm/common"
	"github.com/ava-labs/libevm/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/ava-labs/transfer-dashboard/pkg/insight"
)

// DefaultDecimals is the fixed precision of the watched token (USDC-style, 6 decimals).
const DefaultDecimals = 6

// topicHexLen is the length of a 32-byte topic including the 0x prefix.
const topicHexLen = 2 + 2*common.HashLength

// ErrMalformedEvent is returned when a raw event lacks a field or carries an undecodable one.
var ErrMalformedEvent = errors.New("malformed event")

// Event is one decoded Transfer log. It is immutable once decoded.
type Event struct {
	BlockNumber     uint64          `json:"blockNumber"`
	BlockTimestamp  int64           `json:"blockTimestamp"`
	TransactionHash string          `json:"transactionHash"`
	LogIndex        uint64          `json:"logIndex"`
	AmountRaw       *big.Int        `json:"amountRaw"`
	Amount          decimal.Decimal `json:"amount"`
	From            string          `json:"from"`
	To              string          `json:"to"`
}

// Decoder turns raw events into Events for a token with a fixed number of decimals.
type Decoder struct {
	decimals int32
}

// NewDecoder returns a Decoder for a token with the given number of decimals.
func NewDecoder(decimals int32) (*Decoder, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("invalid decimals: must not be negative, got %d", decimals)
	}
	return &Decoder{decimals: decimals}, nil
}

// DefaultDecoder decodes amounts with DefaultDecimals.
var DefaultDecoder = &Decoder{decimals: DefaultDecimals}

// Decimals returns the token precision used to scale raw amounts.
func (d *Decoder) Decimals() int32 {
	return d.decimals
}

// Decode decodes a single raw event.
func (d *Decoder) Decode(raw insight.Event) (Event, error) {
	amountRaw, err := ParseAmount(raw.Data)
	if err != nil {
		return Event{}, fmt.Errorf("%w: data: %w", ErrMalformedEvent, err)
	}
	if len(raw.Topics) < 3 {
		return Event{}, fmt.Errorf("%w: expected at least 3 topics, got %d", ErrMalformedEvent, len(raw.Topics))
	}
	from, err := TopicToAddress(raw.Topics[1])
	if err != nil {
		return Event{}, fmt.Errorf("%w: topic 1: %w", ErrMalformedEvent, err)
	}
	to, err := TopicToAddress(raw.Topics[2])
	if err != nil {
		return Event{}, fmt.Errorf("%w: topic 2: %w", ErrMalformedEvent, err)
	}

	return Event{
		BlockNumber:     raw.BlockNumber,
		BlockTimestamp:  raw.BlockTimestamp,
		TransactionHash: raw.TransactionHash,
		LogIndex:        raw.LogIndex,
		AmountRaw:       amountRaw,
		Amount:          decimal.NewFromBigInt(amountRaw, -d.decimals),
		From:            from,
		To:              to,
	}, nil
}

// DecodeAll decodes a batch in order. The first malformed record aborts the whole batch;
// no partial result is returned.
func (d *Decoder) DecodeAll(raws []insight.Event) ([]Event, error) {
	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := d.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d (tx %s): %w", i, raw.TransactionHash, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseAmount parses the 0x-prefixed data field as an unsigned base-16 integer.
// Odd-length and zero-padded values are accepted; "0x" alone decodes to zero.
func ParseAmount(data string) (*big.Int, error) {
	if !strings.HasPrefix(data, "0x") && !strings.HasPrefix(data, "0X") {
		return nil, fmt.Errorf("missing 0x prefix in %q", data)
	}
	digits := data[2:]
	if digits == "" {
		return new(big.Int), nil
	}
	for _, c := range digits {
		if !isHexDigit(c) {
			return nil, fmt.Errorf("invalid hex digit %q in %q", c, data)
		}
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex number %q", data)
	}
	return n, nil
}

// TopicToAddress extracts the address from a 32-byte, left-zero-padded topic:
// it drops the 0x prefix plus 24 hex characters of padding and returns the remaining
// 40 characters, lowercased and 0x-prefixed.
func TopicToAddress(topic string) (string, error) {
	if len(topic) != topicHexLen {
		return "", fmt.Errorf("topic %q: expected %d characters, got %d", topic, topicHexLen, len(topic))
	}
	b, err := hexutil.Decode(topic)
	if err != nil {
		return "", fmt.Errorf("topic %q: %w", topic, err)
	}
	// BytesToAddress keeps the trailing 20 bytes, dropping the 12 bytes of padding.
	return hexutil.Encode(common.BytesToAddress(b).Bytes()), nil
}

// FormatAmount renders an amount with a fixed number of decimal places.
func FormatAmount(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
