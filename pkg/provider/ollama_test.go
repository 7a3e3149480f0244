package provider

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

type ollamaCounters struct {
	tags  int64
	chats int64
}

func ollamaServer(models string, counters *ollamaCounters) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			atomic.AddInt64(&counters.tags, 1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models": ` + models + `}`))
		case "/api/chat":
			atomic.AddInt64(&counters.chats, 1)
			w.Header().Set("Content-Type", "application/x-ndjson")
			_, _ = w.Write([]byte(`{"model":"llama3.1","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"Hi "},"done":false}` + "\n"))
			_, _ = w.Write([]byte(`{"model":"llama3.1","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"there"},"done":true}` + "\n"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaProvider(t *testing.T) {
	Convey("Given a running Ollama with the model present", t, func() {
		counters := &ollamaCounters{}
		srv := ollamaServer(`[{"name": "llama3.1:latest", "model": "llama3.1:latest"}]`, counters)
		defer srv.Close()

		prvdr, err := NewOllamaProvider("llama3.1", Settings{BaseURL: srv.URL})
		So(err, ShouldBeNil)

		Convey("It generates and probes only once", func() {
			for range 2 {
				result, err := prvdr.GenerateResponse(context.Background(), []message.Message{message.User("hi")})

				So(err, ShouldBeNil)
				So(result.Text, ShouldEqual, "Hi there")
			}

			So(atomic.LoadInt64(&counters.tags), ShouldEqual, int64(1))
			So(atomic.LoadInt64(&counters.chats), ShouldEqual, int64(2))
		})

		Convey("It streams deltas", func() {
			var deltas []string

			result, err := prvdr.Stream(
				context.Background(),
				[]message.Message{message.User("hi")},
				func(delta string) { deltas = append(deltas, delta) },
			)

			So(err, ShouldBeNil)
			So(deltas, ShouldResemble, []string{"Hi ", "there"})
			So(result.Text, ShouldEqual, "Hi there")
		})
	})

	Convey("Given a first call whose context is already cancelled", t, func() {
		counters := &ollamaCounters{}
		srv := ollamaServer(`[{"name": "llama3.1:latest", "model": "llama3.1:latest"}]`, counters)
		defer srv.Close()

		prvdr, err := NewOllamaProvider("llama3.1", Settings{BaseURL: srv.URL})
		So(err, ShouldBeNil)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = prvdr.GenerateResponse(cancelled, []message.Message{message.User("hi")})

		Convey("The failure is not reported as a missing runtime", func() {
			var missing *errors.MissingDependencyError

			So(err, ShouldNotBeNil)
			So(stderrors.As(err, &missing), ShouldBeFalse)
		})

		Convey("A later call with a live context succeeds", func() {
			result, err := prvdr.GenerateResponse(context.Background(), []message.Message{message.User("hi")})

			So(err, ShouldBeNil)
			So(result.Text, ShouldEqual, "Hi there")
		})
	})

	Convey("Given a check that times out once", t, func() {
		calls := 0

		probe := newCapabilityProbe(time.Second, func(ctx context.Context) error {
			calls++

			if calls == 1 {
				return &errors.MissingDependencyError{Dependency: "ollama", Err: context.DeadlineExceeded}
			}

			return nil
		})

		Convey("The timeout is not remembered", func() {
			So(probe.ensure(context.Background()), ShouldNotBeNil)
			So(probe.ensure(context.Background()), ShouldBeNil)
			So(probe.ensure(context.Background()), ShouldBeNil)
			So(calls, ShouldEqual, 2)
		})
	})

	Convey("Given a check with a verdict", t, func() {
		calls := 0

		probe := newCapabilityProbe(time.Second, func(ctx context.Context) error {
			calls++
			return &errors.MissingDependencyError{Dependency: "ollama"}
		})

		Convey("The verdict is remembered", func() {
			So(probe.ensure(context.Background()), ShouldNotBeNil)
			So(probe.ensure(context.Background()), ShouldNotBeNil)
			So(calls, ShouldEqual, 1)
		})
	})

	Convey("Given a running Ollama without the model", t, func() {
		counters := &ollamaCounters{}
		srv := ollamaServer(`[]`, counters)
		defer srv.Close()

		prvdr, err := NewOllamaProvider("llama3.1", Settings{BaseURL: srv.URL})
		So(err, ShouldBeNil)

		_, err = prvdr.GenerateResponse(context.Background(), []message.Message{message.User("hi")})

		Convey("It reports the missing model without calling chat", func() {
			var missing *errors.MissingDependencyError

			So(stderrors.As(err, &missing), ShouldBeTrue)
			So(missing.Install, ShouldContainSubstring, "ollama pull llama3.1")
			So(atomic.LoadInt64(&counters.chats), ShouldEqual, int64(0))
		})
	})

	Convey("Given no Ollama runtime", t, func() {
		prvdr, err := NewOllamaProvider("llama3.1", Settings{BaseURL: "http://127.0.0.1:1"})
		So(err, ShouldBeNil)

		_, err = prvdr.GenerateResponse(context.Background(), []message.Message{message.User("hi")})

		Convey("The first use names the dependency and how to install it", func() {
			var missing *errors.MissingDependencyError

			So(stderrors.As(err, &missing), ShouldBeTrue)
			So(missing.Dependency, ShouldEqual, "ollama")
			So(err.Error(), ShouldContainSubstring, "ollama.com")
		})
	})

	Convey("Given an invalid host", t, func() {
		_, err := NewOllamaProvider("llama3.1", Settings{BaseURL: "::not a url"})

		Convey("Construction fails with a configuration error", func() {
			So(stderrors.Is(err, errors.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given model names with and without tags", t, func() {
		So(sameOllamaModel("llama3.1:latest", "llama3.1"), ShouldBeTrue)
		So(sameOllamaModel("llama3.1:8b", "llama3.1"), ShouldBeFalse)
		So(sameOllamaModel("llama3.1:8b", "llama3.1:8b"), ShouldBeTrue)
	})
}
