package sse

import (
	"bufio"
	"encoding/json"
	"time"
)

// DefaultHeartbeat keeps idle streams open through proxies.
const DefaultHeartbeat = 25 * time.Second

/*
Writer frames JSON-encoded events for a single Server-Sent Events response.
Each event is sent as a single-line SSE message of the form:

data: {json}\n\n
*/
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

/*
Send marshals v and flushes it as one data frame. A flush error means the
client has gone away.
*/
func (writer *Writer) Send(v any) error {
	msg, err := json.Marshal(v)

	if err != nil {
		return err
	}

	_, _ = writer.w.WriteString("data: ")
	_, _ = writer.w.Write(msg)
	_, _ = writer.w.WriteString("\n\n")

	return writer.w.Flush()
}

/*
Heartbeat writes a comment frame, which clients ignore.
*/
func (writer *Writer) Heartbeat() error {
	_, _ = writer.w.WriteString(": heartbeat\n\n")
	return writer.w.Flush()
}

/*
Relay forwards events until the channel is closed, converting each one with
frame. Heartbeats are written while the channel is idle. It returns the
first write error, leaving the channel for the caller to drain.
*/
func Relay[T any](writer *Writer, events <-chan T, interval time.Duration, frame func(T) any) error {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil
			}

			if err := writer.Send(frame(evt)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := writer.Heartbeat(); err != nil {
				return err
			}
		}
	}
}
