package insight

// Event is one raw log record as returned by the events API.
type Event struct {
	ChainID          string   `json:"chain_id,omitempty"`
	BlockNumber      uint64   `json:"block_number"`
	BlockHash        string   `json:"block_hash,omitempty"`
	BlockTimestamp   int64    `json:"block_timestamp"`
	TransactionHash  string   `json:"transaction_hash"`
	TransactionIndex uint64   `json:"transaction_index,omitempty"`
	LogIndex         uint64   `json:"log_index"`
	Address          string   `json:"address"`
	Data             string   `json:"data"`
	Topics           []string `json:"topics"`
}

// eventsResponse is the envelope of an events API response.
type eventsResponse struct {
	Data []Event `json:"data"`
}

// Query holds the pagination and sort parameters of one events request.
type Query struct {
	SortBy    string
	SortOrder string
	Limit     int
}

const (
	DefaultSortBy    = "block_number"
	DefaultSortOrder = "desc"
)

// NewestFirst returns a query for the latest limit events ordered by block number, newest first.
func NewestFirst(limit int) Query {
	return Query{
		SortBy:    DefaultSortBy,
		SortOrder: DefaultSortOrder,
		Limit:     limit,
	}
}
