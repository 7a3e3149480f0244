package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

const deepseekCompletion = `{
	"id": "ds-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "deepseek-chat",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": %q, "tool_calls": %s}
	}],
	"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`

/*
deepseekServer answers completions with body, streams "Hel" "lo" when asked
to stream, and counts the requests it receives.
*/
func deepseekServer(status int, body string, last *map[string]any, requests *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		atomic.AddInt64(requests, 1)

		raw, _ := io.ReadAll(r.Body)
		decoded := map[string]any{}
		_ = json.Unmarshal(raw, &decoded)
		*last = decoded

		if stream, _ := decoded["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")

			for _, delta := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, "data: {\"id\":\"ds-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"deepseek-chat\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
			}

			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newTestDeepseek(srv *httptest.Server) *DeepseekProvider {
	return NewDeepseekProvider("deepseek-chat", WithDeepseekClient(Settings{
		APIKey:  "ds-test",
		BaseURL: srv.URL + "/",
	}))
}

func TestDeepseekProvider(t *testing.T) {
	Convey("Given a DeepSeek endpoint answering with text", t, func() {
		var (
			last     map[string]any
			requests int64
		)

		srv := deepseekServer(http.StatusOK, fmt.Sprintf(deepseekCompletion, "Paris.", "null"), &last, &requests)
		defer srv.Close()

		prvdr := newTestDeepseek(srv)

		Convey("It returns normalized text", func() {
			result, err := prvdr.GenerateResponse(context.Background(), []message.Message{
				message.User("Capital of France?"),
				message.System("Be brief."),
			})

			So(err, ShouldBeNil)
			So(result.Text, ShouldEqual, "Paris.")
			So(result.Role, ShouldEqual, "assistant")
			So(result.Provider, ShouldEqual, KindDeepSeek)

			Convey("And folds the system turn before the first user turn", func() {
				msgs := last["messages"].([]any)
				So(msgs, ShouldHaveLength, 2)
				So(msgs[0].(map[string]any)["role"], ShouldEqual, "system")
				So(msgs[1].(map[string]any)["role"], ShouldEqual, "user")
				So(last["max_tokens"], ShouldEqual, float64(2000))
			})
		})

		Convey("GenerateChat reports the assistant role", func() {
			chat, err := prvdr.GenerateChat(context.Background(), []message.Message{message.User("hi")})

			So(err, ShouldBeNil)
			So(chat.Content, ShouldEqual, "Paris.")
			So(chat.Role, ShouldEqual, "assistant")
		})

		Convey("It streams deltas", func() {
			var deltas []string

			result, err := prvdr.Stream(
				context.Background(),
				[]message.Message{message.User("hi")},
				func(delta string) { deltas = append(deltas, delta) },
			)

			So(err, ShouldBeNil)
			So(deltas, ShouldResemble, []string{"Hel", "lo"})
			So(result.Text, ShouldEqual, "Hello")
		})
	})

	Convey("Given a DeepSeek endpoint answering with a tool call", t, func() {
		var (
			last     map[string]any
			requests int64
		)

		calls := `[{"index": 0, "id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}}]`
		srv := deepseekServer(http.StatusOK, fmt.Sprintf(deepseekCompletion, "", calls), &last, &requests)
		defer srv.Close()

		tool := WithTools(ToolDefinition{
			Name: "get_weather",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
			},
		})

		Convey("The arguments stay a JSON string", func() {
			result, err := newTestDeepseek(srv).GenerateResponse(
				context.Background(), []message.Message{message.User("Weather?")}, tool,
			)

			So(err, ShouldBeNil)
			So(last["tools"], ShouldHaveLength, 1)
			So(result.ToolCalls, ShouldResemble, []ToolCall{{
				ID:        "call_1",
				Name:      "get_weather",
				Arguments: `{"city":"Paris"}`,
			}})
		})

		Convey("Streaming with tools answers with one request", func() {
			result, err := newTestDeepseek(srv).Stream(
				context.Background(), []message.Message{message.User("Weather?")}, func(string) {}, tool,
			)

			So(err, ShouldBeNil)
			So(result.ToolCalls, ShouldHaveLength, 1)
			So(atomic.LoadInt64(&requests), ShouldEqual, int64(1))
			So(last["stream"], ShouldNotEqual, true)
		})
	})

	Convey("Given a DeepSeek endpoint rejecting the key", t, func() {
		var (
			last     map[string]any
			requests int64
		)

		srv := deepseekServer(http.StatusUnauthorized, `{"error": {"message": "invalid key"}}`, &last, &requests)
		defer srv.Close()

		_, err := newTestDeepseek(srv).GenerateResponse(context.Background(), []message.Message{message.User("hi")})

		Convey("The vendor error carries the status", func() {
			var vendorErr *errors.VendorGenerationError

			So(stderrors.As(err, &vendorErr), ShouldBeTrue)
			So(vendorErr.Status, ShouldEqual, http.StatusUnauthorized)
			So(vendorErr.Provider, ShouldEqual, "deepseek")
		})
	})
}
