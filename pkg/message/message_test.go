package message

import (
	"encoding/json"
	"testing"
	"unicode/utf8"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFlatten(t *testing.T) {
	Convey("Given a mixed conversation", t, func() {
		msgs := []Message{
			System("be brief"),
			User("I live in"),
			Assistant("Where?"),
			WithParts(RoleUser, NewTextPart("Mumbai,"), NewImagePart("https://x/y.png", "image/png"), NewTextPart("India")),
		}

		Convey("User mode joins only user text with single spaces", func() {
			So(Flatten(msgs, FlattenUser), ShouldEqual, "I live in Mumbai, India")
		})

		Convey("All mode includes every role", func() {
			So(Flatten(msgs, FlattenAll), ShouldEqual, "be brief I live in Where? Mumbai, India")
		})
	})

	Convey("Given only assistant turns", t, func() {
		msgs := []Message{Assistant("hello"), Assistant("again")}

		Convey("Flattening user turns yields an empty string", func() {
			So(Flatten(msgs, FlattenUser), ShouldEqual, "")
			So(LastUserText(msgs), ShouldEqual, "")
		})
	})
}

func TestContentDecoding(t *testing.T) {
	Convey("Given JSON message payloads", t, func() {
		Convey("A plain string decodes as text", func() {
			var msg Message
			So(json.Unmarshal([]byte(`{"role":"user","content":"hi"}`), &msg), ShouldBeNil)
			So(msg.String(), ShouldEqual, "hi")
			So(msg.Content.IsStructured(), ShouldBeFalse)
		})

		Convey("A part array decodes all known part shapes", func() {
			var msg Message
			payload := `{"role":"user","content":[
				{"type":"text","text":"look"},
				{"type":"image_url","image_url":{"url":"https://x/cat.png"}},
				{"type":"video","src":"nope"}
			]}`

			So(json.Unmarshal([]byte(payload), &msg), ShouldBeNil)
			So(msg.Content.IsStructured(), ShouldBeTrue)
			So(msg.Content.Parts(), ShouldHaveLength, 2)
			So(msg.Content.Parts()[1].ImageURL, ShouldEqual, "https://x/cat.png")
			So(msg.String(), ShouldEqual, "look")
		})

		Convey("Unrecognized content is coerced to empty text without failing", func() {
			var msgs []Message
			err := json.Unmarshal([]byte(`[{"role":"user","content":{"weird":true}},{"role":"user","content":"ok"}]`), &msgs)

			So(err, ShouldBeNil)
			So(msgs, ShouldHaveLength, 2)
			So(msgs[0].Content.IsInvalid(), ShouldBeTrue)
			So(msgs[0].String(), ShouldEqual, "")
			So(Flatten(msgs, FlattenUser), ShouldEqual, "ok")
		})
	})
}

func TestToVendorFormat(t *testing.T) {
	Convey("Given a conversation with system turns", t, func() {
		msgs := []Message{
			Assistant("Welcome back"),
			System("memories"),
			User("hello"),
			System("be kind"),
			Assistant("hi"),
		}

		Convey("A system channel vendor receives the joined system text", func() {
			system, out := ToVendorFormat(msgs, VendorRules{SystemChannel: true})

			So(system, ShouldEqual, "memories\n\nbe kind")
			So(out, ShouldHaveLength, 3)
			So(out[0].Role, ShouldEqual, "assistant")
			So(out[1].Text, ShouldEqual, "hello")
		})

		Convey("Other vendors get the system text folded before the first user turn", func() {
			system, out := ToVendorFormat(msgs, VendorRules{})

			So(system, ShouldEqual, "")
			So(out, ShouldHaveLength, 4)
			So(out[0].Role, ShouldEqual, "assistant")
			So(out[1].Role, ShouldEqual, "system")
			So(out[1].Text, ShouldEqual, "memories\n\nbe kind")
			So(out[2].Text, ShouldEqual, "hello")
		})

		Convey("Roles are renamed per vendor", func() {
			_, out := ToVendorFormat(msgs, VendorRules{
				SystemChannel: true,
				RoleNames:     map[Role]string{RoleAssistant: "model"},
			})

			So(out[0].Role, ShouldEqual, "model")
			So(out[1].Role, ShouldEqual, "user")
		})
	})

	Convey("Given structured content", t, func() {
		msgs := []Message{
			WithParts(RoleUser, NewTextPart("describe"), NewImagePart("https://x/cat.png", "image/png")),
			WithParts(RoleUser, NewTextPart("just text")),
			{Role: RoleTool, Content: Text("42")},
		}

		Convey("Plain string vendors without images keep single text parts as text", func() {
			_, out := ToVendorFormat(msgs, VendorRules{PlainStringOnly: true})

			So(out[0].Text, ShouldEqual, "describe")
			So(out[0].Parts, ShouldBeNil)
			So(out[1].Text, ShouldEqual, "just text")
			So(out[2].Role, ShouldEqual, "user")
		})

		Convey("Plain string vendors with images receive JSON encoded parts", func() {
			_, out := ToVendorFormat(msgs, VendorRules{PlainStringOnly: true, Images: true})

			var parts []Part
			So(json.Unmarshal([]byte(out[0].Text), &parts), ShouldBeNil)
			So(parts, ShouldHaveLength, 2)
			So(parts[1].Type, ShouldEqual, PartTypeImage)
		})

		Convey("Structured vendors keep the parts", func() {
			_, out := ToVendorFormat(msgs, VendorRules{Images: true})

			So(out[0].Parts, ShouldHaveLength, 2)
			So(out[0].Text, ShouldEqual, "describe")
		})
	})
}

func TestRolePrefixPrompt(t *testing.T) {
	Convey("Given a short conversation", t, func() {
		msgs := []Message{
			System("You remember things."),
			User("hi"),
			Assistant("hello"),
			User("what city?"),
		}

		Convey("It renders a deterministic Human/Assistant transcript", func() {
			prompt := RolePrefixPrompt("Memories: Mumbai", msgs)

			So(prompt, ShouldEqual,
				"Memories: Mumbai\n\nYou remember things."+
					"\n\nHuman: hi\n\nAssistant: hello\n\nHuman: what city?\n\nAssistant:",
			)
		})

		Convey("Without system text it starts at the first Human turn", func() {
			So(RolePrefixPrompt("", msgs[1:2]), ShouldEqual, "\n\nHuman: hi\n\nAssistant:")
		})
	})
}

func TestTruncate(t *testing.T) {
	Convey("Given text with multi-byte runes at the cut", t, func() {
		text := "Straße in München"

		Convey("The cut backs off to a rune boundary", func() {
			So(truncate(text, 5), ShouldEqual, "Stra...")
			So(utf8.ValidString(truncate(text, 5)), ShouldBeTrue)
		})

		Convey("Short text is returned as is", func() {
			So(truncate(text, 100), ShouldEqual, text)
		})
	})
}
