package sse

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type event struct {
	Delta string `json:"delta"`
}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRelay(t *testing.T) {
	Convey("Given a channel of events", t, func() {
		events := make(chan string, 2)
		events <- "Hel"
		events <- "lo"
		close(events)

		Convey("When they are relayed to a buffer", func() {
			var buf bytes.Buffer
			writer := NewWriter(bufio.NewWriter(&buf))

			err := Relay(writer, events, time.Second, func(delta string) any {
				return event{Delta: delta}
			})

			Convey("Then every event is one data frame in order", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldEqual,
					"data: {\"delta\":\"Hel\"}\n\ndata: {\"delta\":\"lo\"}\n\n")
			})
		})
	})

	Convey("Given an idle channel", t, func() {
		events := make(chan string)

		Convey("When the relay runs for a while", func() {
			var buf bytes.Buffer
			writer := NewWriter(bufio.NewWriter(&buf))

			go func() {
				time.Sleep(80 * time.Millisecond)
				close(events)
			}()

			err := Relay(writer, events, 20*time.Millisecond, func(delta string) any {
				return delta
			})

			Convey("Then heartbeats keep the stream alive", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, ": heartbeat\n\n")
			})
		})
	})

	Convey("Given a client that went away", t, func() {
		events := make(chan string, 1)
		events <- "lost"

		Convey("When an event is sent", func() {
			writer := NewWriter(bufio.NewWriterSize(brokenSink{}, 16))
			err := Relay(writer, events, time.Second, func(delta string) any {
				return delta
			})

			Convey("Then the write error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
