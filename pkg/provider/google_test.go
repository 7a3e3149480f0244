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

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
geminiServer answers generateContent with the given parts and records the
last request.
*/
func geminiServer(parts string, last *map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}

		raw, _ := io.ReadAll(r.Body)
		decoded := map[string]any{}
		_ = json.Unmarshal(raw, &decoded)
		*last = decoded

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": ` + parts + `}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 2, "totalTokenCount": 5}
		}`))
	}))
}

func newTestGoogle(srv *httptest.Server) *GoogleProvider {
	prvdr, err := NewGoogleProvider(context.Background(), "gemini-2.0-flash", Settings{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})

	So(err, ShouldBeNil)
	return prvdr
}

func TestGoogleProvider(t *testing.T) {
	Convey("Given a Gemini endpoint answering with text", t, func() {
		var last map[string]any

		srv := geminiServer(`[{"text": "Bonjour."}]`, &last)
		defer srv.Close()

		prvdr := newTestGoogle(srv)

		Convey("It returns normalized text", func() {
			result, err := prvdr.GenerateResponse(context.Background(), []message.Message{
				message.System("Answer in French."),
				message.User("Hello"),
				message.Assistant("Salut"),
				message.User("Again"),
			})

			So(err, ShouldBeNil)
			So(result.Text, ShouldEqual, "Bonjour.")
			So(result.Role, ShouldEqual, "assistant")
			So(result.Provider, ShouldEqual, KindGoogle)
			So(result.ToolCalls, ShouldBeNil)

			Convey("And sends system text through the system instruction", func() {
				instruction := last["systemInstruction"].(map[string]any)
				parts := instruction["parts"].([]any)
				So(parts[0].(map[string]any)["text"], ShouldEqual, "Answer in French.")

				contents := last["contents"].([]any)
				So(contents, ShouldHaveLength, 3)
				So(contents[0].(map[string]any)["role"], ShouldEqual, "user")
				So(contents[1].(map[string]any)["role"], ShouldEqual, "model")
			})

			Convey("And sends the stable default parameters", func() {
				config := last["generationConfig"].(map[string]any)
				So(config["maxOutputTokens"], ShouldEqual, float64(2000))
				So(config["temperature"], ShouldAlmostEqual, 0.1, 0.0001)
			})
		})

		Convey("GenerateChat reports the assistant role", func() {
			chat, err := prvdr.GenerateChat(context.Background(), []message.Message{message.User("hi")})

			So(err, ShouldBeNil)
			So(chat.Content, ShouldEqual, "Bonjour.")
			So(chat.Role, ShouldEqual, "assistant")
		})
	})

	Convey("Given a Gemini endpoint answering with a function call", t, func() {
		var last map[string]any

		srv := geminiServer(`[{"functionCall": {"id": "fc_1", "name": "get_weather", "args": {"city": "Paris"}}}]`, &last)
		defer srv.Close()

		result, err := newTestGoogle(srv).GenerateResponse(
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

		Convey("The object arguments become a JSON string", func() {
			So(err, ShouldBeNil)
			So(result.Text, ShouldBeEmpty)
			So(result.ToolCalls, ShouldHaveLength, 1)
			So(result.ToolCalls[0].ID, ShouldEqual, "fc_1")
			So(result.ToolCalls[0].Name, ShouldEqual, "get_weather")
			So(result.ToolCalls[0].Arguments, ShouldEqual, `{"city":"Paris"}`)
		})

		Convey("The tool is declared as a function", func() {
			tools := last["tools"].([]any)
			decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
			So(decls[0].(map[string]any)["name"], ShouldEqual, "get_weather")
		})
	})
}

func TestGoogleClientConfiguration(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	Convey("Given no API key anywhere", t, func() {
		_, err := NewGoogleProvider(context.Background(), "gemini-2.0-flash", Settings{})

		Convey("Construction fails with a configuration error", func() {
			So(stderrors.Is(err, errors.ErrConfiguration), ShouldBeTrue)
		})
	})
}
