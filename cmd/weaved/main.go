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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weaveloop/weave/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "weaved",
	Short:   "weaved - agent orchestrator server",
	Long:    `weaved mediates between a client and an LLM provider, running a tool-calling agent loop with durable per-session journaling and resumption.`,
	Version: version.Get(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: weave.yaml in the data directory or the current directory)")
	rootCmd.PersistentFlags().String("host", "", "server host (overrides config)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (overrides config)")
	rootCmd.PersistentFlags().String("llm-provider", "", "LLM provider: anthropic, openai, or bedrock (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")

	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
