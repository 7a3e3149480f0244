package provider

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mem0-go/pkg/errors"
)

func TestSelect(t *testing.T) {
	Convey("Given a vendor endpoint that counts requests", t, func() {
		var hits int64

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(&hits, 1)
		}))
		defer srv.Close()

		Convey("An unsupported provider fails before anything else", func() {
			adapter, err := Select("not-a-provider", "", Settings{APIKey: "key", BaseURL: srv.URL})

			So(adapter, ShouldBeNil)
			So(stderrors.Is(err, errors.ErrConfiguration), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "openai")
			So(atomic.LoadInt64(&hits), ShouldEqual, int64(0))
		})

		Convey("A missing API key is a configuration error", func() {
			adapter, err := Select("openai", "", Settings{BaseURL: srv.URL})

			So(adapter, ShouldBeNil)
			So(stderrors.Is(err, errors.ErrConfiguration), ShouldBeTrue)
			So(atomic.LoadInt64(&hits), ShouldEqual, int64(0))
		})

		Convey("Out of range sampling parameters are rejected", func() {
			_, err := Select("anthropic", "", Settings{
				APIKey: "key",
				Params: &Params{Temperature: 3, TopP: 0.5},
			})

			So(stderrors.Is(err, errors.ErrConfiguration), ShouldBeTrue)
		})

		Convey("Ollama is constructed without touching the network", func() {
			adapter, err := Select("ollama", "", Settings{BaseURL: srv.URL})

			So(err, ShouldBeNil)
			So(adapter.Kind(), ShouldEqual, KindOllama)
			So(adapter.Model(), ShouldEqual, KindOllama.DefaultModel())
			So(atomic.LoadInt64(&hits), ShouldEqual, int64(0))
		})

		Convey("LangChain needs a wrapped model", func() {
			_, err := Select("langchain", "", Settings{})
			So(stderrors.Is(err, errors.ErrConfiguration), ShouldBeTrue)

			adapter, err := Select("langchain", "", Settings{LangChain: &fakeLLM{}})
			So(err, ShouldBeNil)
			So(adapter.Kind(), ShouldEqual, KindLangChain)
		})

		Convey("OpenAI compatible vendors share one adapter", func() {
			for _, name := range []string{"openai", "openrouter", "deepinfra", "lmstudio"} {
				adapter, err := Select(name, "some-model", Settings{APIKey: "key", BaseURL: srv.URL})

				So(err, ShouldBeNil)
				So(adapter, ShouldHaveSameTypeAs, &OpenAIProvider{})
				So(adapter.Model(), ShouldEqual, "some-model")
			}
		})

		Convey("Every supported kind resolves", func() {
			So(len(SupportedKinds()), ShouldEqual, 11)

			for _, kind := range SupportedKinds() {
				parsed, err := ParseKind(string(kind))
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, kind)
			}
		})
	})
}

func TestParseKind(t *testing.T) {
	Convey("Given vendor aliases", t, func() {
		Convey("They resolve to the canonical kind", func() {
			for alias, want := range map[string]Kind{
				"gemini":      KindGoogle,
				"aws_bedrock": KindBedrock,
				"LM-Studio":   KindLMStudio,
				" OpenAI ":    KindOpenAI,
			} {
				kind, err := ParseKind(alias)
				So(err, ShouldBeNil)
				So(kind, ShouldEqual, want)
			}
		})
	})
}
