// Command ratatoskr runs the assistant host: websocket chat surface, task
// dispatcher, reasoning pipeline, and long-term memory.
//
// With -pipeline-worker it runs as the child side of the process worker
// instead: one pipeline invocation over stdin/stdout, then exit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/agent"
	"github.com/ratatoskr-ai/ratatoskr-go/config"
	"github.com/ratatoskr-ai/ratatoskr-go/core"
	"github.com/ratatoskr-ai/ratatoskr-go/dispatch"
	"github.com/ratatoskr-ai/ratatoskr-go/logging"
	"github.com/ratatoskr-ai/ratatoskr-go/memory"
	"github.com/ratatoskr-ai/ratatoskr-go/memory/chromem"
	"github.com/ratatoskr-ai/ratatoskr-go/memory/embedder"
	"github.com/ratatoskr-ai/ratatoskr-go/server"
)

func main() {
	configPath := flag.String("config", "ratatoskr.yaml", "path to the YAML config file")
	workerMode := flag.Bool("pipeline-worker", false, "run as a pipeline worker child process")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(logging.Options{File: cfg.Log.File, Level: cfg.Log.Level})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		log.Fatalf("build pipeline: %v", err)
	}

	if *workerMode {
		if err := dispatch.ServeWorker(ctx, pipeline, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("pipeline worker: %v", err)
		}
		return
	}

	var worker dispatch.Worker
	if cfg.Worker.Mode == "process" {
		worker = &dispatch.ProcWorker{Command: cfg.Worker.Command}
	}
	dispatcher := dispatch.New(worker)

	srv := server.New(dispatcher, pipeline, server.WithPollInterval(cfg.PollInterval))
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildPipeline assembles embedder, memory bank, and agent from config.
func buildPipeline(cfg config.Config) (dispatch.Pipeline, error) {
	embed := embedder.New(embedder.Config{
		ONNXModelPath:     cfg.Embedder.ONNXModelPath,
		ONNXTokenizerPath: cfg.Embedder.ONNXTokenizerPath,
		ONNXLibraryPath:   cfg.Embedder.ONNXLibraryPath,
		OllamaURL:         cfg.Embedder.OllamaURL,
		OllamaModel:       cfg.Embedder.OllamaModel,
		Dimensions:        cfg.Embedder.Dimensions,
	})

	var bank memory.Bank
	var err error
	switch cfg.Memory.Backend {
	case "chromem":
		bank, err = chromem.Open(cfg.Memory.Dir, embed)
	default:
		bank, err = memory.Open(cfg.Memory.Dir, embed, memory.WithRecallK(cfg.Memory.RecallK))
	}
	if err != nil {
		return nil, err
	}

	return agent.New(agent.NewCompleter(), bank,
		agent.WithModel(cfg.Model),
		agent.WithMaxTurns(cfg.MaxTurns),
		agent.WithRecallK(cfg.Memory.RecallK),
		agent.WithSearch(&agent.DuckDuckGo{}),
		agent.WithJournal(core.NewJournal()),
		agent.WithExchangeMemory(),
	), nil
}
