package pipeline

import (
	"time"

	"lotlister/internal"
)

type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventCategoryCache EventKind = "category_cache"
	EventExtracted     EventKind = "extracted"
	EventSuccess       EventKind = "success"
	EventError         EventKind = "error"
)

// CacheInfo reports the classifier index state.
type CacheInfo struct {
	Count       int           `json:"count"`
	BuildTime   time.Duration `json:"buildTime"`
	IsCached    bool          `json:"isCached"`
	IsNewUpload bool          `json:"isNewUpload"`
}

// Extracted carries every invoice link of a run and the shipping total
// across invoices after any discount.
type Extracted struct {
	Items         []internal.InvoiceLink `json:"items"`
	TotalShipping float64                `json:"totalShipping"`
}

// Event is one message of a run's ordered progress stream. Exactly one of
// the payload fields is set for the non-progress kinds.
type Event struct {
	Kind      EventKind
	Message   string
	Done      int
	Total     int
	Cache     *CacheInfo
	Extracted *Extracted
	Result    *Result
	Err       error
}

// Sink receives run events in order. It must not block for long.
type Sink func(Event)

func (s Sink) emit(e Event) {
	if s != nil {
		s(e)
	}
}

func (s Sink) progress(msg string) {
	s.emit(Event{Kind: EventProgress, Message: msg})
}

func (s Sink) count(msg string, done, total int) {
	s.emit(Event{Kind: EventProgress, Message: msg, Done: done, Total: total})
}
