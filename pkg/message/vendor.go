package message

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
)

/*
VendorRules describes how a vendor accepts messages.
*/
type VendorRules struct {
	// SystemChannel extracts system turns into a dedicated field instead of
	// folding them into the list before the first user turn.
	SystemChannel bool
	// PlainStringOnly means content must be a string; structured content is
	// JSON encoded.
	PlainStringOnly bool
	// Images means image parts are forwarded, otherwise they are dropped.
	Images bool
	// RoleNames renames roles, e.g. assistant to "model" or "CHATBOT".
	RoleNames map[Role]string
}

/*
VendorMessage is a message already shaped for one vendor. Text is always
set; Parts is only set when the vendor accepts structured content.
*/
type VendorMessage struct {
	Role  string
	Text  string
	Parts []Part
}

/*
ToVendorFormat maps messages onto a vendor's accepted shape, preserving their
order. It returns the extracted system text when the vendor has a system
channel, and "" otherwise.
*/
func ToVendorFormat(msgs []Message, rules VendorRules) (string, []VendorMessage) {
	var (
		system []string
		out    = make([]VendorMessage, 0, len(msgs))
	)

	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			if text := msg.String(); text != "" {
				system = append(system, text)
			}

			continue
		}

		out = append(out, rules.convert(msg))
	}

	joined := strings.Join(system, "\n\n")

	if rules.SystemChannel || joined == "" {
		return joined, out
	}

	folded := VendorMessage{Role: rules.roleName(RoleSystem), Text: joined}

	if !rules.PlainStringOnly {
		folded.Parts = []Part{NewTextPart(joined)}
	}

	at := firstUser(msgs)
	out = append(out[:at], append([]VendorMessage{folded}, out[at:]...)...)

	return "", out
}

func (rules VendorRules) convert(msg Message) VendorMessage {
	parts := msg.Content.Parts()

	if !rules.Images {
		kept := make([]Part, 0, len(parts))

		for _, part := range parts {
			if part.Type == PartTypeImage {
				log.Warn("dropping image part for text-only vendor", "role", msg.Role)
				continue
			}

			kept = append(kept, part)
		}

		parts = kept
	}

	converted := VendorMessage{
		Role: rules.roleName(msg.Role),
		Text: Parts(parts...).String(),
	}

	if !rules.PlainStringOnly {
		converted.Parts = parts
		return converted
	}

	if msg.Content.IsStructured() && !singleText(parts) {
		encoded, err := json.Marshal(parts)

		if err != nil {
			log.Warn("failed to encode structured content", "error", err)
			return converted
		}

		converted.Text = string(encoded)
	}

	return converted
}

func (rules VendorRules) roleName(role Role) string {
	if name, ok := rules.RoleNames[role]; ok {
		return name
	}

	if role == RoleTool {
		return string(RoleUser)
	}

	return string(role)
}

/*
firstUser returns the index, among the non-system messages, of the first
user turn. Without any user turn the fold goes to the front.
*/
func firstUser(msgs []Message) int {
	idx := 0

	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			continue
		}

		if msg.Role == RoleUser {
			return idx
		}

		idx++
	}

	return 0
}

func singleText(parts []Part) bool {
	return len(parts) == 0 || (len(parts) == 1 && parts[0].Type == PartTypeText)
}

/*
RolePrefixPrompt renders messages as a Human/Assistant transcript for
completion-only transports. System text precedes the first Human turn and the
prompt always ends with an open Assistant turn.
*/
func RolePrefixPrompt(system string, msgs []Message) string {
	var sb strings.Builder

	extracted, converted := ToVendorFormat(msgs, VendorRules{
		SystemChannel:   true,
		PlainStringOnly: true,
	})

	for _, text := range []string{system, extracted} {
		if text == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}

		sb.WriteString(text)
	}

	for _, msg := range converted {
		switch Role(msg.Role) {
		case RoleAssistant:
			sb.WriteString("\n\nAssistant: ")
		default:
			sb.WriteString("\n\nHuman: ")
		}

		sb.WriteString(msg.Text)
	}

	sb.WriteString("\n\nAssistant:")
	return sb.String()
}
