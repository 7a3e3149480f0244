package message

import "strings"

/*
Role of a message author. RoleTool is accepted on input and is treated as
user text by vendors that have no tool role.
*/
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

/*
Message is one role-tagged turn of a conversation.
*/
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: Text(text)}
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: Text(text)}
}

func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: Text(text)}
}

func WithParts(role Role, parts ...Part) Message {
	return Message{Role: role, Content: Parts(parts...)}
}

func (msg Message) String() string {
	return msg.Content.String()
}

/*
FlattenMode selects which turns contribute to a flattened query.
*/
type FlattenMode int

const (
	FlattenUser FlattenMode = iota
	FlattenAll
)

/*
Flatten concatenates the text of the selected turns with single spaces.
Prompts without matching turns flatten to the empty string.
*/
func Flatten(msgs []Message, mode FlattenMode) string {
	texts := make([]string, 0, len(msgs))

	for _, msg := range msgs {
		if mode == FlattenUser && msg.Role != RoleUser {
			continue
		}

		if text := msg.String(); text != "" {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, " ")
}

/*
LastUserText returns the text of the final user turn, or "".
*/
func LastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].String()
		}
	}

	return ""
}
