// Command sample-agent hosts a minimal conversational agent: it echoes user
// messages and serves a greeting stored as knowledge.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/messaging"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub001/platform"
)

func main() {
	configPath := flag.String("config", "", "path to the options YAML file (XIANS_* env vars override)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "sample-agent:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	opts, err := platform.Load(configPath)
	if err != nil {
		return err
	}
	p, err := platform.New(opts)
	if err != nil {
		return err
	}

	echo := agent.New("EchoAgent")
	echo.AddWorkflow("Chat").AsDefault().WithWorkers(2).OnUserMessage(func(ctx *messaging.UserMessageContext) error {
		if ctx.Text == "greet" {
			greeting, err := p.Knowledge.Get(ctx.Context(), "greeting")
			if err == nil && greeting != nil {
				return ctx.Reply(greeting.Content)
			}
		}
		return ctx.Reply("echo: " + ctx.Text)
	})
	echo.AddTaskWorkflow()
	if err := p.RegisterAgent(echo); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return p.Start(ctx)
}
