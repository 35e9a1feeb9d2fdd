package bus

import "time"

// Event represents a redraw or state-change signal published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the model layer.
const (
	KindListChanged = "ui.list_changed"
	KindLogChanged  = "ui.log_changed"
)
