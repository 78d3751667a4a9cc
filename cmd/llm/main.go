// Command llm is a terminal chat client for LLM providers.
//
// Usage:
//
//	OPENAI_API_KEY=sk-...    llm [flags] [prompt]
//	ANTHROPIC_API_KEY=sk-... llm [flags] [prompt]
//	GEMINI_API_KEY=gk-...    llm [flags] [prompt]
//
// With a prompt argument the command sends one turn and exits. Without one
// it reads turns from stdin until EOF. Pending turns are buffered and sent
// in a single request when the reply is needed.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/anthropic"
	"github.com/llmrb/llm/gemini"
	llmjson "github.com/llmrb/llm/json"
	"github.com/llmrb/llm/openai"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "llm: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		providerFlag = pflag.StringP("provider", "p", "", "Provider: openai, anthropic, gemini (auto-detected from env vars if omitted)")
		modelFlag    = pflag.StringP("model", "m", "", "Model ID (default: provider default)")
		configPath   = pflag.String("config", "", "Path to TOML config file (default: ~/.llm/config.toml)")
		transcript   = pflag.StringP("transcript", "t", "", "Path to transcript file to resume and save")
		systemPrompt = pflag.StringP("system", "s", "", "System prompt")
		maxTokens    = pflag.Int("max-tokens", 0, "Maximum tokens per reply")
		temperature  = pflag.Float64("temperature", 0, "Sampling temperature")
		noStream     = pflag.Bool("no-stream", false, "Wait for the full reply instead of streaming")
		noMarkdown   = pflag.Bool("no-markdown", false, "Print replies verbatim instead of rendering markdown")
		apiKey       = pflag.String("api-key", "", "API key (overrides provider's env var)")
	)
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	explicit := *configPath != ""
	path := *configPath
	if !explicit {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	applyFlags(&cfg, *providerFlag, *modelFlag, *maxTokens, *temperature, *noMarkdown)

	provider, err := resolveProvider(ctx, cfg.Provider, *apiKey,
		os.Getenv("OPENAI_API_KEY"), os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		return err
	}

	streaming := !*noStream
	render, err := newRenderer(os.Stdout, cfg.Markdown && !streaming)
	if err != nil {
		return err
	}

	bot := llm.NewBot(provider, botOptions(cfg, streaming)...)
	if *systemPrompt != "" {
		bot.System(*systemPrompt)
	}
	if *transcript != "" {
		msgs, err := llmjson.Load(*transcript)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load transcript: %w", err)
		}
		bot.Messages().Restore(msgs)
	}

	if prompt := strings.Join(pflag.Args(), " "); prompt != "" {
		bot.Chat(prompt)
		if err := reply(ctx, bot, render, streaming); err != nil {
			return err
		}
	} else if err := interact(ctx, bot, render, streaming); err != nil {
		return err
	}

	if *transcript != "" {
		msgs, err := bot.Messages().Messages(ctx)
		if err != nil {
			return err
		}
		if err := llmjson.Save(*transcript, msgs); err != nil {
			return fmt.Errorf("save transcript: %w", err)
		}
	}
	return nil
}

func applyFlags(cfg *Config, provider, model string, maxTokens int, temperature float64, noMarkdown bool) {
	if provider != "" {
		cfg.Provider = provider
	}
	if model != "" {
		cfg.Model = model
	}
	if maxTokens != 0 {
		cfg.MaxTokens = maxTokens
	}
	if temperature != 0 {
		cfg.Temperature = temperature
	}
	if noMarkdown {
		cfg.Markdown = false
	}
}

func botOptions(cfg Config, streaming bool) []llm.Option {
	var opts []llm.Option
	if cfg.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Model))
	}
	if cfg.MaxTokens != 0 {
		opts = append(opts, llm.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Temperature != 0 {
		opts = append(opts, llm.WithTemperature(cfg.Temperature))
	}
	if streaming {
		opts = append(opts, llm.WithStream(llm.SinkFunc(func(text string) {
			fmt.Print(text)
		})))
	}
	return opts
}

// resolveProvider picks a provider from the flag or, if unset, from
// whichever provider env var is present. Env vars are read by the caller
// and passed as values.
func resolveProvider(ctx context.Context, name, keyOverride, openaiKey, anthropicKey, geminiKey string) (llm.Provider, error) {
	if name == "" {
		switch {
		case openaiKey != "":
			name = "openai"
		case anthropicKey != "":
			name = "anthropic"
		case geminiKey != "":
			name = "gemini"
		default:
			return nil, errors.New("no provider configured: set OPENAI_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY, or pass --provider")
		}
	}

	key := func(envKey, envName string) (string, error) {
		if keyOverride != "" {
			return keyOverride, nil
		}
		if envKey == "" {
			return "", fmt.Errorf("%s not set", envName)
		}
		return envKey, nil
	}

	switch name {
	case "openai":
		k, err := key(openaiKey, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return openai.New(k), nil
	case "anthropic":
		k, err := key(anthropicKey, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return anthropic.New(k), nil
	case "gemini":
		k, err := key(geminiKey, "GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, k)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// reply flushes the pending turn and prints whatever the provider sent
// back. When streaming, text already reached stdout through the sink, so
// only tool calls and usage remain to print.
func reply(ctx context.Context, bot *llm.Bot, render *renderer, streaming bool) error {
	msgs, err := bot.Messages().Unread(ctx)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.Role == llm.RoleUser || msg.Role == llm.RoleSystem || msg.Role == llm.RoleDeveloper {
			continue
		}
		if streaming {
			fmt.Println()
			for _, tc := range msg.ToolCalls() {
				fmt.Printf("call %s(%s)\n", tc.Name, strings.TrimSpace(string(tc.Arguments)))
			}
			continue
		}
		if err := render.message(msg); err != nil {
			return err
		}
	}
	if usage, ok, err := bot.Usage(ctx); err == nil && ok {
		render.usage(usage)
	}
	return nil
}

func interact(ctx context.Context, bot *llm.Bot, render *renderer, streaming bool) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Printf("%s ", roleLabel(llm.RoleUser))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		bot.Chat(line)
		if err := reply(ctx, bot, render, streaming); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
