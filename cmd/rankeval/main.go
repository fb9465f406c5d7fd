// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
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
	"os"
	"os/signal"

	"github.com/gorse-io/rankeval/cmd/version"
	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/config"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var conf *config.Config

var rootCommand = &cobra.Command{
	Use:   "rankeval",
	Short: "Offline evaluation of top-N recommenders.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		// load config
		configPath, _ := cmd.Flags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		var err error
		conf, err = config.LoadConfig(configPath)
		if err != nil {
			return errors.Annotate(err, "failed to load config")
		}
		if cmd.Flags().Changed("data") {
			conf.Data.Path, _ = cmd.Flags().GetString("data")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().StringP("data", "d", "", "interaction file path (overrides data.path)")
	rootCommand.Flags().BoolP("version", "v", false, "rankeval version")
	rootCommand.AddCommand(evaluateCommand)
	rootCommand.AddCommand(searchCommand)
}

// loadData reads interactions and splits users into train, validation and test groups.
func loadData(conf *config.Config) (*dataset.Interactions, *dataset.UserSplits, error) {
	if conf.Data.Path == "" {
		return nil, nil, errors.NotValidf("empty data path")
	}
	file, err := os.Open(conf.Data.Path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	defer file.Close()
	interactions, err := dataset.LoadInteractions(file, conf.Data.Separator, conf.Data.Header)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	splits, err := dataset.SplitUsers(interactions.Matrix,
		conf.Data.ValidationRatio, conf.Data.TestRatio, conf.Data.HeldOutRatio, conf.Data.Seed)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	log.Logger().Info("load data complete",
		zap.String("path", conf.Data.Path),
		zap.Int("n_users", interactions.Matrix.CountUsers()),
		zap.Int("n_items", interactions.Matrix.CountItems()),
		zap.Int("n_interactions", interactions.Matrix.Nnz()),
		zap.Int("n_train_users", splits.Train.CountUsers()),
		zap.Int("n_validation_users", splits.Validation.CountUsers()),
		zap.Int("n_test_users", splits.Test.CountUsers()))
	return interactions, splits, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
