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
	"fmt"
	"io"
	"strconv"

	"github.com/gorse-io/rankeval/evaluation"
	"github.com/gorse-io/rankeval/model"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/samber/lo"
)

// newTable keeps headers verbatim since metric keys such as "ndcg@10" must
// not be split or upper-cased.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithHeaderAutoFormat(tw.Off))
}

// renderScores prints one row per metric and one column per cutoff.
func renderScores(w io.Writer, scores map[string]float64, cutoffs []int) error {
	table := newTable(w)
	header := []string{"Metric"}
	for _, cutoff := range cutoffs {
		header = append(header, fmt.Sprintf("@%d", cutoff))
	}
	table.Header(lo.ToAnySlice(header)...)
	for _, name := range evaluation.MetricNames {
		row := []string{name}
		for _, cutoff := range cutoffs {
			score, exist := scores[fmt.Sprintf("%s@%d", name, cutoff)]
			if !exist {
				return errors.NotFoundf("%s@%d", name, cutoff)
			}
			row = append(row, strconv.FormatFloat(score, 'f', 6, 64))
		}
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

// renderTrials prints the target metric and hyper-parameters of search trials.
func renderTrials(w io.Writer, trials []model.SearchResult, targetMetric string, cutoff int) error {
	table := newTable(w)
	table.Header("#", "Model", fmt.Sprintf("%s@%d", targetMetric, cutoff), "Params")
	for i, trial := range trials {
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			trial.Type,
			strconv.FormatFloat(trial.Score, 'f', 6, 64),
			trial.Params.ToString(),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
