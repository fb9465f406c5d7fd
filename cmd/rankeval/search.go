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
	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/gorse-io/rankeval/model"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchCommand = &cobra.Command{
	Use:   "search",
	Short: "Search models on validation users and evaluate the best one on test users.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		trials, _ := cmd.Flags().GetInt("trials")
		if !cmd.Flags().Changed("trials") {
			trials = conf.Search.Trials
		}
		interactions, splits, err := loadData(conf)
		if err != nil {
			return errors.Trace(err)
		}
		creators := make(map[string]model.ModelCreator, len(conf.Search.Models))
		for _, name := range conf.Search.Models {
			creator, exist := model.BuiltInModels[name]
			if !exist {
				return errors.NotFoundf("model %s", name)
			}
			creators[name] = creator
		}
		fitConfig := model.NewFitConfig().SetJobs(conf.Search.Jobs).SetVerbose(conf.Search.Verbose)

		// search on validation users
		validationConfig, err := conf.Evaluation.NewEvaluatorConfig(interactions.ItemDict)
		if err != nil {
			return errors.Trace(err)
		}
		validator, err := evaluation.NewEvaluator(splits.Validation.Predict, validationConfig.SetOffset(splits.ValidationOffset()))
		if err != nil {
			return errors.Trace(err)
		}
		search := model.NewModelSearch(creators, splits.LearnMatrix(), validator, fitConfig)
		bar := progressbar.Default(int64(trials), "search")
		search.SetCallback(func(_ int, _ model.SearchResult) {
			_ = bar.Add(1)
		})
		best, err := search.Optimize(cmd.Context(), trials)
		if err != nil {
			return errors.Trace(err)
		}
		_ = bar.Finish()
		if err = renderTrials(cmd.OutOrStdout(), search.Trials(), validationConfig.TargetMetric, validationConfig.Cutoff); err != nil {
			return errors.Trace(err)
		}

		// refit the best model with validation users
		m, err := model.NewModel(best.Type, best.Params)
		if err != nil {
			return errors.Trace(err)
		}
		if err = m.Fit(cmd.Context(), splits.RefitMatrix(), fitConfig); err != nil {
			return errors.Trace(err)
		}
		testConfig, err := conf.Evaluation.NewEvaluatorConfig(interactions.ItemDict)
		if err != nil {
			return errors.Trace(err)
		}
		tester, err := evaluation.NewEvaluator(splits.Test.Predict, testConfig.SetOffset(splits.TestOffset()))
		if err != nil {
			return errors.Trace(err)
		}
		scores, err := tester.GetScores(cmd.Context(), m, conf.Evaluation.Cutoffs)
		if err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("search complete",
			zap.String("model", best.Type),
			zap.Any("params", best.Params),
			zap.Float64(validationConfig.TargetMetric, best.Score))
		return renderScores(cmd.OutOrStdout(), scores, conf.Evaluation.Cutoffs)
	},
}

func init() {
	searchCommand.Flags().IntP("trials", "n", 10, "number of trials (overrides search.trials)")
}
