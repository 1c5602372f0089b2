package telemetry

import (
	"time"

	"github.com/star/orbitdash/internal/chart"
)

// Frame types.
const (
	FrameTelemetry = "telemetry"
	FrameError     = "error"
)

// Frame is the render payload for one tick. A telemetry frame carries the
// snapshot and figure; an error frame carries the error and a short reason,
// and the page keeps the previous chart.
type Frame struct {
	Type     string        `json:"type"`
	Seq      uint64        `json:"seq"`
	Time     time.Time     `json:"t"`
	Body     string        `json:"body"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
	Figure   *chart.Figure `json:"figure,omitempty"`
	Error    string        `json:"error,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// NewErrorFrame builds the frame published when a tick fails.
func NewErrorFrame(seq uint64, t time.Time, body string, err error) *Frame {
	return &Frame{
		Type:   FrameError,
		Seq:    seq,
		Time:   t,
		Body:   body,
		Error:  err.Error(),
		Reason: Reason(err),
	}
}
