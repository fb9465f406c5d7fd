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

package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of rankeval.
type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Search     SearchConfig     `mapstructure:"search"`
}

// DataConfig describes the interaction file and how users are split.
type DataConfig struct {
	Path            string  `mapstructure:"path"`
	Separator       string  `mapstructure:"separator" validate:"required"`
	Header          bool    `mapstructure:"header"`
	ValidationRatio float64 `mapstructure:"validation_ratio" validate:"gte=0,lt=1"`
	TestRatio       float64 `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	HeldOutRatio    float64 `mapstructure:"held_out_ratio" validate:"gt=0,lt=1"`
	Seed            int64   `mapstructure:"seed"`
}

// EvaluationConfig describes how ranking metrics are computed.
type EvaluationConfig struct {
	Cutoff             int      `mapstructure:"cutoff" validate:"gt=0"`
	Cutoffs            []int    `mapstructure:"cutoffs" validate:"required,dive,gt=0"`
	TargetMetric       string   `mapstructure:"target_metric" validate:"oneof=ndcg recall hit"`
	RecommendableItems []string `mapstructure:"recommendable_items"`
	ThreadCount        int      `mapstructure:"thread_count" validate:"gt=0"`
	ChunkSize          int      `mapstructure:"chunk_size" validate:"gt=0"`
}

// SearchConfig describes the hyper-parameter search.
type SearchConfig struct {
	Models  []string `mapstructure:"models" validate:"required,dive,oneof=toppop itemknn ials"`
	Trials  int      `mapstructure:"trials" validate:"gt=0"`
	Jobs    int      `mapstructure:"jobs" validate:"gt=0"`
	Verbose int      `mapstructure:"verbose" validate:"gt=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Separator:       ",",
			Header:          false,
			ValidationRatio: 0.1,
			TestRatio:       0.1,
			HeldOutRatio:    0.2,
			Seed:            0,
		},
		Evaluation: EvaluationConfig{
			Cutoff:       10,
			Cutoffs:      []int{5, 10, 20},
			TargetMetric: evaluation.NDCG,
			ThreadCount:  1,
			ChunkSize:    1024,
		},
		Search: SearchConfig{
			Models:  []string{"toppop", "itemknn", "ials"},
			Trials:  10,
			Jobs:    1,
			Verbose: 10,
		},
	}
}

// NewEvaluatorConfig creates the evaluator configuration. Recommendable items
// are external ids translated by items.
func (config *EvaluationConfig) NewEvaluatorConfig(items *dataset.FreqDict) (*evaluation.Config, error) {
	c := evaluation.NewConfig().
		SetCutoff(config.Cutoff).
		SetTargetMetric(config.TargetMetric).
		SetThreadCount(config.ThreadCount).
		SetChunkSize(config.ChunkSize)
	if len(config.RecommendableItems) > 0 {
		recommendable := make([]int, 0, len(config.RecommendableItems))
		for _, name := range config.RecommendableItems {
			id, ok := items.Lookup(name)
			if !ok {
				return nil, errors.NotFoundf("recommendable item %s", name)
			}
			recommendable = append(recommendable, int(id))
		}
		c.SetRecommendableItems(recommendable)
	}
	return c, nil
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.path", defaultConfig.Data.Path)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.header", defaultConfig.Data.Header)
	v.SetDefault("data.validation_ratio", defaultConfig.Data.ValidationRatio)
	v.SetDefault("data.test_ratio", defaultConfig.Data.TestRatio)
	v.SetDefault("data.held_out_ratio", defaultConfig.Data.HeldOutRatio)
	v.SetDefault("data.seed", defaultConfig.Data.Seed)
	// [evaluation]
	v.SetDefault("evaluation.cutoff", defaultConfig.Evaluation.Cutoff)
	v.SetDefault("evaluation.cutoffs", defaultConfig.Evaluation.Cutoffs)
	v.SetDefault("evaluation.target_metric", defaultConfig.Evaluation.TargetMetric)
	v.SetDefault("evaluation.recommendable_items", defaultConfig.Evaluation.RecommendableItems)
	v.SetDefault("evaluation.thread_count", defaultConfig.Evaluation.ThreadCount)
	v.SetDefault("evaluation.chunk_size", defaultConfig.Evaluation.ChunkSize)
	// [search]
	v.SetDefault("search.models", defaultConfig.Search.Models)
	v.SetDefault("search.trials", defaultConfig.Search.Trials)
	v.SetDefault("search.jobs", defaultConfig.Search.Jobs)
	v.SetDefault("search.verbose", defaultConfig.Search.Verbose)
}

// LoadConfig loads configuration from a TOML file. Every value can be
// overwritten by an environment variable such as RANKEVAL_DATA_PATH. An
// empty path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("RANKEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	// lists from environment variables are comma separated, and elements
	// are weakly converted to the slice's element type
	err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToWeakSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
