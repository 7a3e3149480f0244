package provider

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/tmc/langchaingo/llms"
)

/*
fakeLLM is an llms.Model that records what it was asked and streams its
answer in two chunks when a streaming func is set.
*/
type fakeLLM struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	answer   string
	calls    []llms.ToolCall
	stalled  bool
}

func (llm *fakeLLM) GenerateContent(
	ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	llm.messages = messages
	llm.options = llms.CallOptions{}

	for _, option := range options {
		option(&llm.options)
	}

	if llm.stalled {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if llm.options.StreamingFunc != nil && len(llm.answer) > 1 {
		half := len(llm.answer) / 2

		for _, chunk := range []string{llm.answer[:half], llm.answer[half:]} {
			if err := llm.options.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: llm.answer, ToolCalls: llm.calls}},
	}, nil
}

func (llm *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, llm, prompt, options...)
}

func TestLangChainProvider(t *testing.T) {
	Convey("Given a wrapped langchain model", t, func() {
		llm := &fakeLLM{answer: "Hello world"}
		prvdr := NewLangChainProvider("langchain", llm, Settings{})

		Convey("It maps roles and parameters", func() {
			result, err := prvdr.GenerateResponse(context.Background(), []message.Message{
				message.System("Be kind."),
				message.User("Hi"),
				message.Assistant("Hello"),
				message.User("How are you?"),
			})

			So(err, ShouldBeNil)
			So(result.Text, ShouldEqual, "Hello world")
			So(result.Provider, ShouldEqual, KindLangChain)

			So(llm.messages, ShouldHaveLength, 4)
			So(llm.messages[0].Role, ShouldEqual, llms.ChatMessageTypeSystem)
			So(llm.messages[1].Role, ShouldEqual, llms.ChatMessageTypeHuman)
			So(llm.messages[2].Role, ShouldEqual, llms.ChatMessageTypeAI)
			So(llm.options.Temperature, ShouldEqual, 0.1)
			So(llm.options.MaxTokens, ShouldEqual, 2000)
			So(llm.options.Model, ShouldBeEmpty)
		})

		Convey("It streams through the streaming func", func() {
			var deltas []string

			result, err := prvdr.Stream(
				context.Background(),
				[]message.Message{message.User("Hi")},
				func(delta string) { deltas = append(deltas, delta) },
			)

			So(err, ShouldBeNil)
			So(deltas, ShouldResemble, []string{"Hello", " world"})
			So(result.Text, ShouldEqual, "Hello world")
		})

		Convey("It normalizes tool calls", func() {
			llm.answer = ""
			llm.calls = []llms.ToolCall{{
				ID:           "call_1",
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`},
			}}

			result, err := prvdr.GenerateResponse(
				context.Background(),
				[]message.Message{message.User("Weather?")},
				WithTools(ToolDefinition{Name: "get_weather"}),
			)

			So(err, ShouldBeNil)
			So(llm.options.Tools, ShouldHaveLength, 1)
			So(result.ToolCalls, ShouldResemble, []ToolCall{{
				ID:        "call_1",
				Name:      "get_weather",
				Arguments: `{"city":"Paris"}`,
			}})
		})
	})

	Convey("Given a wrapped model that never answers", t, func() {
		llm := &fakeLLM{stalled: true}
		prvdr := NewLangChainProvider("langchain", llm, Settings{Timeout: 50 * time.Millisecond})

		started := time.Now()
		_, err := prvdr.GenerateResponse(context.Background(), []message.Message{message.User("Hi")})

		Convey("The call is cut off at the configured timeout", func() {
			So(stderrors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(time.Since(started) < 2*time.Second, ShouldBeTrue)
		})
	})
}
