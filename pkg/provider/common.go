package provider

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
adapter carries what every vendor implementation shares.
*/
type adapter struct {
	kind   Kind
	model  string
	params Params
	caps   Capabilities
}

func (prvdr *adapter) Kind() Kind {
	return prvdr.kind
}

func (prvdr *adapter) Model() string {
	return prvdr.model
}

func (prvdr *adapter) Capabilities() Capabilities {
	return prvdr.caps
}

/*
prepare resolves the call options against the adapter's capabilities.
Requested features the vendor cannot honour become warnings.
*/
func (prvdr *adapter) prepare(
	msgs []message.Message, opts []CallOption,
) (*callConfig, []message.Message, []string) {
	cfg := newCallConfig(prvdr.params, opts)

	var warnings []string

	if len(cfg.tools) > 0 && !prvdr.caps.Tools {
		warnings = append(warnings, prvdr.warn("tool calling"))
		cfg.tools = nil
		cfg.toolChoice = ""
	}

	if cfg.format.structured() && !prvdr.caps.ResponseFormat {
		msgs = append(append([]message.Message(nil), msgs...), message.System(cfg.format.instruction()))
	}

	if !prvdr.caps.Images && hasImages(msgs) {
		warnings = append(warnings, prvdr.warn("image input"))
	}

	return cfg, msgs, warnings
}

func (prvdr *adapter) warn(capability string) string {
	warning := &errors.UnsupportedCapability{Provider: string(prvdr.kind), Capability: capability}
	log.Warn("unsupported capability", "provider", prvdr.kind, "model", prvdr.model, "capability", capability)
	return warning.Error()
}

func (prvdr *adapter) result(text string, calls []ToolCall, warnings []string) *GenerationResult {
	return &GenerationResult{
		Text:      text,
		Role:      RoleAssistant,
		ToolCalls: calls,
		Provider:  prvdr.kind,
		Model:     prvdr.model,
		Warnings:  warnings,
	}
}

func (prvdr *adapter) fail(status int, err error) error {
	vendorErr := errors.NewVendorError(string(prvdr.kind), prvdr.model, err)
	vendorErr.Status = status
	log.Error("generation failed", "provider", prvdr.kind, "model", prvdr.model, "status", status, "error", errors.Scrub(err.Error()))
	return vendorErr
}

func hasImages(msgs []message.Message) bool {
	for _, msg := range msgs {
		for _, part := range msg.Content.Parts() {
			if part.Type == message.PartTypeImage {
				return true
			}
		}
	}

	return false
}

/*
chatFrom reduces a generation to the tool-free chat shape.
*/
func chatFrom(result *GenerationResult, err error) (*ChatResult, error) {
	if err != nil {
		return nil, err
	}

	return &ChatResult{Content: result.Text, Role: RoleAssistant}, nil
}

/*
StreamOrGenerate streams through adapters that implement Streamer and
otherwise generates once and reports the whole text as a single delta.
*/
func StreamOrGenerate(
	ctx context.Context,
	adapter Adapter,
	msgs []message.Message,
	onDelta func(string),
	opts ...CallOption,
) (*GenerationResult, error) {
	if streamer, ok := adapter.(Streamer); ok && adapter.Capabilities().Streaming {
		return streamer.Stream(ctx, msgs, onDelta, opts...)
	}

	result, err := adapter.GenerateResponse(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}

	if result.Text != "" {
		onDelta(result.Text)
	}

	return result, nil
}
