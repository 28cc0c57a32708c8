// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/weaveloop/weave/internal/config"
	"github.com/weaveloop/weave/internal/journal"
	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/mcp/manager"
	"github.com/weaveloop/weave/internal/permission"
	"github.com/weaveloop/weave/internal/provider"
	"github.com/weaveloop/weave/internal/provider/anthropic"
	"github.com/weaveloop/weave/internal/provider/bedrock"
	"github.com/weaveloop/weave/internal/provider/openai"
	"github.com/weaveloop/weave/internal/session"
	"github.com/weaveloop/weave/internal/sessionstore"
	"github.com/weaveloop/weave/internal/tools"
	"github.com/weaveloop/weave/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the weaved HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log.SetLogger(logger)
	defer log.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Session.DBPath), 0o755); err != nil {
		return fmt.Errorf("create session store dir: %w", err)
	}
	store, err := sessionstore.Open(cfg.Session.DBPath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	approvals := permission.NewCoordinator()

	sweeper := journal.NewSweeper(cfg.Session.SessionStoreDir, time.Duration(cfg.Session.ArchiveRetentionDays)*24*time.Hour)
	if err := sweeper.Start(cfg.Session.ArchiveSweepCron); err != nil {
		return fmt.Errorf("start archive sweeper: %w", err)
	}
	defer sweeper.Stop()

	mcpManager, err := manager.NewManager(cfg.MCP, logger.Named("mcp"))
	if err != nil {
		return fmt.Errorf("build mcp manager: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mcpManager.Start(ctx); err != nil {
		log.Warn("serve: mcp manager start", zap.Error(err))
	}
	defer mcpManager.Stop()

	dispatcher := tools.New(tools.Config{
		Sessions:      store,
		Approvals:     approvals,
		WorkspaceRoot: cfg.Session.WorkspaceRoot,
		MCP:           mcpManager,
	})

	providerOf, err := buildProviderResolver(cfg)
	if err != nil {
		return err
	}

	registry := transport.NewRegistry(transport.Config{
		Sessions:   store,
		Approvals:  approvals,
		Dispatcher: dispatcher,
		ProviderOf: providerOf,
		JournalDir: cfg.Session.SessionStoreDir,
		MaxTokens:  cfg.LLM.MaxTokens,
	})
	handler := transport.NewHandler(registry)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: handler.Mux()}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serve: listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
		log.Info("serve: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// buildLogger constructs the global zap logger from LoggingConfig,
// matching the teacher's debug/production split: "json" selects the
// production encoder, anything else (including the default "text")
// gets the human-readable development console encoder.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// buildProviderResolver constructs one Adapter per configured provider
// up front (failing fast on bad credentials instead of mid-turn) and
// returns a func that picks among them by session.Session.Provider,
// falling back to the configured default provider when a session
// leaves it unset.
func buildProviderResolver(cfg *config.Config) (func(session.Session) (provider.Provider, error), error) {
	providers := make(map[string]provider.Provider)

	if cfg.LLM.AnthropicAPIKey != "" {
		adapter, err := anthropic.New(anthropic.Config{APIKey: cfg.LLM.AnthropicAPIKey, Model: cfg.LLM.AnthropicModel})
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		providers["anthropic"] = adapter
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		adapter, err := openai.New(openai.Config{APIKey: cfg.LLM.OpenAIAPIKey, Model: cfg.LLM.OpenAIModel})
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		providers["openai"] = adapter
	}
	if cfg.LLM.BedrockRegion != "" && cfg.LLM.Provider == "bedrock" {
		adapter, err := bedrock.New(context.Background(), bedrock.Config{
			ModelID: cfg.LLM.BedrockModelID,
			Region:  cfg.LLM.BedrockRegion,
			Profile: cfg.LLM.BedrockProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock: %w", err)
		}
		providers["bedrock"] = adapter
	}

	if _, ok := providers[cfg.LLM.Provider]; !ok {
		return nil, fmt.Errorf("serve: configured default provider %q has no usable credentials", cfg.LLM.Provider)
	}

	return func(sess session.Session) (provider.Provider, error) {
		name := sess.Provider
		if name == "" {
			name = cfg.LLM.Provider
		}
		p, ok := providers[name]
		if !ok {
			return nil, fmt.Errorf("serve: session %q requests unconfigured provider %q", sess.ID, name)
		}
		return p, nil
	}, nil
}
