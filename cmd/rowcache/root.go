/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"os"

	"github.com/rulego/rowcache/logger"
	"github.com/rulego/rowcache/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile string
	cfg     *types.CacheConfig
	log     *logrus.Logger
)

//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "rowcache",
	Short: "Page through large tables with a windowed row cache",
	Long: `rowcache reads CSV, JSON lines, SQLite and Redis list tables through a
ring buffer cache. Tables can be sorted and filtered; derived tables are
materialized in memory or spilled to a directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rowcache.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error), overrides the config file")
	addSourceFlags(rootCmd)
	addTransformFlags(rootCmd)

	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	rootCmd.AddCommand(pageCmd, countCmd, exportCmd)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile == "" {
		cfgFile = "./rowcache.yaml"
	}
	loaded, err := types.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	levelName := cfg.LogLevel
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		levelName = flag
	}
	level, parseErr := logrus.ParseLevel(levelName)
	if parseErr != nil {
		log.WithError(parseErr).Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
		levelName = "info"
	}
	log.SetLevel(level)
	logger.SetDefault(logger.FromLogrus(log, logger.ParseLevel(levelName)))
	return nil
}
