package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
cohereServer answers /v1/chat with the given status and body and records the
last request.
*/
func cohereServer(status int, body string, last *map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/chat") {
			http.NotFound(w, r)
			return
		}

		raw, _ := io.ReadAll(r.Body)
		decoded := map[string]any{}
		_ = json.Unmarshal(raw, &decoded)
		*last = decoded

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newTestCohere(url string, timeout time.Duration) *CohereProvider {
	return NewCohereProvider("command-r", WithCohereClient(Settings{
		APIKey:  "co-test",
		BaseURL: url,
		Timeout: timeout,
	}))
}

func TestCohereProvider(t *testing.T) {
	Convey("Given a Cohere endpoint answering with text", t, func() {
		var last map[string]any

		srv := cohereServer(http.StatusOK, `{"text": "Paris.", "generation_id": "g1"}`, &last)
		defer srv.Close()

		prvdr := newTestCohere(srv.URL, 0)

		Convey("It returns normalized text", func() {
			result, err := prvdr.GenerateResponse(context.Background(), []message.Message{
				message.System("Be brief."),
				message.User("Hi"),
				message.Assistant("Hello"),
				message.User("Capital of France?"),
			})

			So(err, ShouldBeNil)
			So(result.Text, ShouldEqual, "Paris.")
			So(result.Role, ShouldEqual, "assistant")
			So(result.Provider, ShouldEqual, KindCohere)

			Convey("And sends system text as the preamble", func() {
				So(last["preamble"], ShouldEqual, "Be brief.")
				So(last["message"], ShouldEqual, "Capital of France?")
				So(last["chat_history"], ShouldHaveLength, 2)
				So(last["max_tokens"], ShouldEqual, float64(2000))
			})
		})

		Convey("GenerateChat reports the assistant role", func() {
			chat, err := prvdr.GenerateChat(context.Background(), []message.Message{message.User("hi")})

			So(err, ShouldBeNil)
			So(chat.Content, ShouldEqual, "Paris.")
			So(chat.Role, ShouldEqual, "assistant")
		})
	})

	Convey("Given a Cohere endpoint answering with a tool call", t, func() {
		var last map[string]any

		srv := cohereServer(http.StatusOK, `{
			"text": "",
			"tool_calls": [{"name": "get_weather", "parameters": {"city": "Paris"}}]
		}`, &last)
		defer srv.Close()

		result, err := newTestCohere(srv.URL, 0).GenerateResponse(
			context.Background(),
			[]message.Message{message.User("Weather in Paris?")},
			WithTools(ToolDefinition{
				Name:        "get_weather",
				Description: "Current weather for a city",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"city": map[string]any{"type": "string"}},
					"required":   []string{"city"},
				},
			}),
		)

		Convey("The object parameters become a JSON string", func() {
			So(err, ShouldBeNil)
			So(result.ToolCalls, ShouldResemble, []ToolCall{{
				Name:      "get_weather",
				Arguments: `{"city":"Paris"}`,
			}})
			So(last["tools"], ShouldHaveLength, 1)
		})
	})

	Convey("Given a Cohere endpoint rejecting the key", t, func() {
		var last map[string]any

		srv := cohereServer(http.StatusUnauthorized, `{"message": "invalid api token"}`, &last)
		defer srv.Close()

		_, err := newTestCohere(srv.URL, 0).GenerateResponse(context.Background(), []message.Message{message.User("hi")})

		Convey("The vendor error carries the status", func() {
			var vendorErr *errors.VendorGenerationError

			So(stderrors.As(err, &vendorErr), ShouldBeTrue)
			So(vendorErr.Status, ShouldEqual, http.StatusUnauthorized)
		})
	})

	Convey("Given a Cohere endpoint that never answers", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		defer srv.Close()

		started := time.Now()
		_, err := newTestCohere(srv.URL, 200*time.Millisecond).GenerateResponse(
			context.Background(), []message.Message{message.User("hi")},
		)

		Convey("The call is cut off at the configured timeout", func() {
			So(stderrors.Is(err, errors.ErrVendorGeneration), ShouldBeTrue)
			So(time.Since(started) < 3*time.Second, ShouldBeTrue)
		})
	})
}
