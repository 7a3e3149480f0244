package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/theapemachine/mem0-go/pkg/ai"
	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/theapemachine/mem0-go/pkg/provider"
)

/*
generateFlags configure one generation from the command line.
*/
type generateFlags struct {
	scopeFlags
	provider    string
	model       string
	system      string
	jsonOutput  bool
	noMemory    bool
	temperature float64
	maxTokens   int
}

func (flags *generateFlags) register(cmd *cobra.Command) {
	flags.scopeFlags.register(cmd)

	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "Provider name (defaults to provider.name)")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model id (defaults to the provider's model)")
	cmd.Flags().StringVarP(&flags.system, "system", "s", "", "Base system prompt")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Ask for a JSON object response")
	cmd.Flags().BoolVar(&flags.noMemory, "no-memory", false, "Generate without retrieving or storing memories")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", -1, "Override the sampling temperature")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "Override the output token limit")
}

/*
setup builds the orchestrator and the request for a prompt.
*/
func (flags *generateFlags) setup(args []string) (*ai.Orchestrator, ai.Request, error) {
	adapter, err := newAdapter(flags.provider, flags.model)
	if err != nil {
		return nil, ai.Request{}, err
	}

	gateway, err := newGateway(flags.noMemory)
	if err != nil {
		return nil, ai.Request{}, err
	}

	options := append(orchestratorOptions(), ai.WithSystemPrompt(flags.system))

	var opts []provider.CallOption

	if flags.jsonOutput {
		opts = append(opts, provider.WithResponseFormat(provider.ResponseFormat{Type: provider.FormatJSONObject}))
	}

	if flags.temperature >= 0 {
		opts = append(opts, provider.WithTemperature(flags.temperature))
	}

	if flags.maxTokens > 0 {
		opts = append(opts, provider.WithMaxTokens(flags.maxTokens))
	}

	return ai.NewOrchestrator(adapter, gateway, options...), ai.Request{
		Messages: []message.Message{message.User(strings.Join(args, " "))},
		Scope:    flags.scope(),
		Options:  opts,
	}, nil
}

var (
	generateOpts generateFlags

	generateCmd = &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a reply with memories of the given scope",
		Long:  longGenerate,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, req, err := generateOpts.setup(args)
			if err != nil {
				return err
			}

			result, err := orchestrator.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			orchestrator.Wait()

			if result.Retrieval.Degraded {
				log.Warn("answered without memory", "error", result.Retrieval.Err)
			}

			if result.Persistence.Err != nil {
				log.Warn("turn was not stored", "error", result.Persistence.Err)
			}

			for _, warning := range result.Generation.Warnings {
				log.Warn("capability dropped", "detail", warning)
			}

			fmt.Println(result.Generation.Text)

			for _, call := range result.Generation.ToolCalls {
				out, _ := json.Marshal(call)
				fmt.Println(string(out))
			}

			return nil
		},
	}

	streamOpts generateFlags

	streamCmd = &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Stream a reply with memories of the given scope",
		Long:  longStream,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, req, err := streamOpts.setup(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			chunks, err := orchestrator.Stream(ctx, req)
			if err != nil {
				return err
			}

			var final ai.Chunk

			for chunk := range chunks {
				if chunk.Done {
					final = chunk
					continue
				}

				fmt.Print(chunk.Delta)
			}

			fmt.Println()
			orchestrator.Wait()

			return final.Err
		},
	}
)

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(streamCmd)

	generateOpts.register(generateCmd)
	streamOpts.register(streamCmd)
}

var longGenerate = `
Generate a reply. Memories of the scope are retrieved first and placed in the
system prompt; the prompt and the reply are stored afterwards.

Examples:
  mem0-go generate --user-id alice "Where do I live?"
  mem0-go generate -p anthropic --json --user-id alice "Summarise what you know about me"
`

var longStream = `
Stream a reply as it is generated. Interrupting the stream still stores the
part of the reply that was received.

Examples:
  mem0-go stream -p ollama -m llama3.1:8b --user-id alice "Tell me a story"
`
