package provider

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/mem0-go/pkg/message"
	"google.golang.org/genai"
)

/*
textOnly is an adapter without any optional capability, answering with a
fixed text.
*/
type textOnly struct {
	adapter
	seen []message.Message
}

func (prvdr *textOnly) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	_, msgs, warnings := prvdr.prepare(msgs, opts)
	prvdr.seen = msgs
	return prvdr.result("plain answer", nil, warnings), nil
}

func (prvdr *textOnly) GenerateChat(ctx context.Context, msgs []message.Message) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func TestPrepare(t *testing.T) {
	Convey("Given an adapter without tools or structured output", t, func() {
		prvdr := &textOnly{adapter: adapter{kind: KindCohere, model: "m", params: DefaultParams()}}

		result, err := prvdr.GenerateResponse(
			context.Background(),
			[]message.Message{message.WithParts(
				message.RoleUser,
				message.NewTextPart("What is this?"),
				message.NewImagePart("https://example.com/cat.png", "image/png"),
			)},
			WithTools(ToolDefinition{Name: "lookup"}),
			WithResponseFormat(ResponseFormat{Type: FormatJSONObject}),
		)

		Convey("Generation continues with warnings", func() {
			So(err, ShouldBeNil)
			So(result.Text, ShouldEqual, "plain answer")
			So(result.Warnings, ShouldHaveLength, 2)
			So(result.Warnings[0], ShouldContainSubstring, "tool calling")
			So(result.Warnings[1], ShouldContainSubstring, "image input")
		})

		Convey("The format becomes an instruction", func() {
			last := prvdr.seen[len(prvdr.seen)-1]
			So(last.Role, ShouldEqual, message.RoleSystem)
			So(last.Content.String(), ShouldContainSubstring, "JSON")
		})
	})
}

func TestStreamOrGenerate(t *testing.T) {
	Convey("Given an adapter that cannot stream", t, func() {
		prvdr := &textOnly{adapter: adapter{kind: KindCohere, model: "m", params: DefaultParams()}}

		var deltas []string

		result, err := StreamOrGenerate(
			context.Background(),
			prvdr,
			[]message.Message{message.User("hi")},
			func(delta string) { deltas = append(deltas, delta) },
		)

		Convey("The whole text arrives as a single delta", func() {
			So(err, ShouldBeNil)
			So(deltas, ShouldResemble, []string{"plain answer"})
			So(result.Text, ShouldEqual, "plain answer")
		})
	})
}

func TestCohereConversion(t *testing.T) {
	Convey("Given a multi-turn conversation", t, func() {
		prvdr := NewCohereProvider("command-r")

		preamble, history, last := prvdr.convertMessages([]message.Message{
			message.System("Be terse."),
			message.User("Hi"),
			message.Assistant("Hello"),
			message.User("Bye"),
		})

		Convey("System becomes the preamble and the last turn the message", func() {
			So(preamble, ShouldEqual, "Be terse.")
			So(last, ShouldEqual, "Bye")
			So(history, ShouldHaveLength, 2)
			So(history[0].Role, ShouldEqual, "USER")
			So(history[1].Role, ShouldEqual, "CHATBOT")
			So(history[1].Chatbot.Message, ShouldEqual, "Hello")
		})
	})
}

func TestToolDefinitions(t *testing.T) {
	Convey("Given a tool advertised over MCP", t, func() {
		tool := ToolFromMCP(mcp.NewTool(
			"get_weather",
			mcp.WithDescription("Current weather for a city"),
			mcp.WithString("city", mcp.Required(), mcp.Description("City name")),
		))

		Convey("It converts to an object schema", func() {
			So(tool.Name, ShouldEqual, "get_weather")
			So(tool.Description, ShouldEqual, "Current weather for a city")
			So(tool.Required(), ShouldResemble, []string{"city"})
			So(tool.Properties(), ShouldContainKey, "city")
			So(tool.Schema()["type"], ShouldEqual, "object")
		})

		Convey("It converts to a Gemini schema", func() {
			schema := toGoogleSchema(tool.Schema())

			So(schema.Type, ShouldEqual, genai.TypeObject)
			So(schema.Properties["city"].Type, ShouldEqual, genai.TypeString)
			So(schema.Required, ShouldResemble, []string{"city"})
		})
	})
}

func TestEncodeArguments(t *testing.T) {
	assert.Equal(t, "{}", encodeArguments(nil))
	assert.Equal(t, "{}", encodeArguments(""))
	assert.Equal(t, `{"a":1}`, encodeArguments(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, encodeArguments(map[string]any{"a": 1}))
	assert.Equal(t, `"not json"`, encodeArguments("not json"))
}
