package message

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

/*
Content is either a plain string or a sequence of typed parts. Content that
could not be recognized during decoding is kept as invalid and reads as an
empty string.
*/
type Content struct {
	text    string
	parts   []Part
	parted  bool
	invalid bool
}

func Text(text string) Content {
	return Content{text: text}
}

func Parts(parts ...Part) Content {
	return Content{parts: parts, parted: true}
}

/*
IsStructured reports whether the content was supplied as parts.
*/
func (content Content) IsStructured() bool {
	return content.parted
}

/*
IsInvalid reports whether the content was neither a string nor a part list.
*/
func (content Content) IsInvalid() bool {
	return content.invalid
}

/*
Parts returns the content as parts. Plain text becomes a single text part.
*/
func (content Content) Parts() []Part {
	if content.invalid {
		return nil
	}

	if !content.parted {
		if content.text == "" {
			return nil
		}

		return []Part{NewTextPart(content.text)}
	}

	return content.parts
}

/*
String joins the text parts with single spaces, dropping everything else.
*/
func (content Content) String() string {
	if content.invalid {
		return ""
	}

	if !content.parted {
		return content.text
	}

	texts := make([]string, 0, len(content.parts))

	for _, part := range content.parts {
		if part.Type == PartTypeText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	return strings.Join(texts, " ")
}

func (content Content) MarshalJSON() ([]byte, error) {
	if content.invalid {
		return json.Marshal("")
	}

	if content.parted {
		return json.Marshal(content.parts)
	}

	return json.Marshal(content.text)
}

/*
UnmarshalJSON accepts a string or an array of parts. Besides the native part
shape it understands `{"type":"image_url","image_url":{"url":...}}` and
`{"type":"input_text","text":...}`. Anything else is kept as invalid content
and a warning is logged; decoding never fails on content shape alone.
*/
func (content *Content) UnmarshalJSON(data []byte) error {
	*content = Content{}
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var text string

	if err := json.Unmarshal(data, &text); err == nil {
		content.text = text
		return nil
	}

	var raw []map[string]any

	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn("unrecognized message content, using empty text", "content", truncate(string(data), 64))
		content.invalid = true
		return nil
	}

	parts := make([]Part, 0, len(raw))

	for _, item := range raw {
		part, ok := decodePart(item)

		if !ok {
			log.Warn("skipping unrecognized content part", "type", item["type"])
			continue
		}

		parts = append(parts, part)
	}

	content.parts = parts
	content.parted = true
	return nil
}

func decodePart(item map[string]any) (Part, bool) {
	kind, _ := item["type"].(string)

	switch kind {
	case "text", "input_text":
		text, ok := item["text"].(string)
		return NewTextPart(text), ok
	case "image":
		url, ok := item["image"].(string)
		mime, _ := item["mime_type"].(string)

		if !ok {
			url, ok = item["url"].(string)
		}

		return NewImagePart(url, mime), ok
	case "image_url":
		switch value := item["image_url"].(type) {
		case string:
			return NewImagePart(value, ""), true
		case map[string]any:
			url, ok := value["url"].(string)
			return NewImagePart(url, ""), ok
		}
	}

	return Part{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n] + "..."
}
