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
	"strconv"

	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/gorse-io/rankeval/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evaluateCommand = &cobra.Command{
	Use:       "evaluate <model>",
	Short:     "Fit a model and evaluate it on test users.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: lo.Keys(model.BuiltInModels),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawParams, _ := cmd.Flags().GetStringToString("param")
		cold, _ := cmd.Flags().GetBool("cold")
		interactions, splits, err := loadData(conf)
		if err != nil {
			return errors.Trace(err)
		}
		m, err := model.NewModel(args[0], parseParams(rawParams))
		if err != nil {
			return errors.Trace(err)
		}
		evalConfig, err := conf.Evaluation.NewEvaluatorConfig(interactions.ItemDict)
		if err != nil {
			return errors.Trace(err)
		}
		fitConfig := model.NewFitConfig().SetJobs(conf.Search.Jobs).SetVerbose(conf.Search.Verbose)

		var scores map[string]float64
		if cold {
			// test users are unseen during training
			trainSet, err := dataset.VStack(splits.Train.All, splits.Validation.All)
			if err != nil {
				return errors.Trace(err)
			}
			if err = m.Fit(cmd.Context(), trainSet, fitConfig); err != nil {
				return errors.Trace(err)
			}
			evaluator, err := evaluation.NewColdEvaluator(splits.Test.Learn, splits.Test.Predict, evalConfig)
			if err != nil {
				return errors.Trace(err)
			}
			scores, err = evaluator.GetScores(cmd.Context(), m, conf.Evaluation.Cutoffs)
			if err != nil {
				return errors.Trace(err)
			}
		} else {
			if err = m.Fit(cmd.Context(), splits.RefitMatrix(), fitConfig); err != nil {
				return errors.Trace(err)
			}
			evaluator, err := evaluation.NewEvaluator(splits.Test.Predict, evalConfig.SetOffset(splits.TestOffset()))
			if err != nil {
				return errors.Trace(err)
			}
			scores, err = evaluator.GetScores(cmd.Context(), m, conf.Evaluation.Cutoffs)
			if err != nil {
				return errors.Trace(err)
			}
		}
		log.Logger().Info("evaluate complete", zap.String("model", args[0]), zap.Any("params", m.GetParams()))
		return renderScores(cmd.OutOrStdout(), scores, conf.Evaluation.Cutoffs)
	},
}

func init() {
	evaluateCommand.Flags().StringToString("param", nil, "hyper-parameters of the model, e.g. --param NFactors=32")
	evaluateCommand.Flags().Bool("cold", false, "evaluate test users as users unseen during training")
}

// parseParams converts flag values into integers, floats or strings.
func parseParams(raw map[string]string) model.Params {
	params := make(model.Params, len(raw))
	for name, value := range raw {
		if i, err := strconv.Atoi(value); err == nil {
			params[model.ParamName(name)] = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[model.ParamName(name)] = f
		} else {
			params[model.ParamName(name)] = value
		}
	}
	return params
}
