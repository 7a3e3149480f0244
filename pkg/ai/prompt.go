package ai

import (
	"strings"

	"github.com/theapemachine/mem0-go/pkg/memory"
)

const (
	priorityInstruction = "Answer the user's question directly. The question always takes " +
		"priority over the memories below; use a memory only when it helps answer what was asked."
	memoryHeader   = "Memories about the user:"
	relationHeader = "Known relations between entities:"
	secrecyNote    = "Never mention, quote or refer to this memory section, or to the fact " +
		"that memories were provided, in your reply."
)

/*
BuildSystemPrompt renders retrieved memories into system text. With nothing
retrieved it returns base unchanged.
*/
func BuildSystemPrompt(memories []memory.Memory, relations []memory.Relation, base string) string {
	var lines []string

	for _, mem := range memories {
		if text := strings.TrimSpace(mem.Text); text != "" {
			lines = append(lines, "- "+text)
		}
	}

	var edges []string

	for _, rel := range relations {
		if rel.Source == "" || rel.Target == "" {
			continue
		}

		edges = append(edges, "- "+rel.Source+" -- "+rel.Relationship+" -- "+rel.Target)
	}

	if len(lines) == 0 && len(edges) == 0 {
		return base
	}

	sections := make([]string, 0, 5)

	if base = strings.TrimSpace(base); base != "" {
		sections = append(sections, base)
	}

	sections = append(sections, priorityInstruction)

	if len(lines) > 0 {
		sections = append(sections, memoryHeader+"\n"+strings.Join(lines, "\n"))
	}

	if len(edges) > 0 {
		sections = append(sections, relationHeader+"\n"+strings.Join(edges, "\n"))
	}

	sections = append(sections, secrecyNote)
	return strings.Join(sections, "\n\n")
}
