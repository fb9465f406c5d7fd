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

package dataset

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/gorse-io/rankeval/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ReadLines parses fields of each line of a csv stream. The separator may be
// longer than one character. Quoted fields may contain separators, escaped
// quotes and line breaks. Parsing stops once handler returns false.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	lineCount := 0
	fields := make([]string, 0)
	builder := strings.Builder{}
	quoted := false
	for sc.Scan() {
		line := sc.Text()
		if quoted {
			builder.WriteString("\r\n")
		}
		for i := 0; i < len(line); i++ {
			switch {
			case !quoted && sep != "" && strings.HasPrefix(line[i:], sep):
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(sep) - 1
			case line[i] == '"' && quoted:
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					builder.WriteByte('"')
				} else {
					quoted = false
				}
			case line[i] == '"':
				quoted = true
			default:
				builder.WriteByte(line[i])
			}
		}
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		lineCount++
	}
	return sc.Err()
}

// Interactions is a loaded interaction log with its id dictionaries.
type Interactions struct {
	Matrix   *InteractionMatrix
	UserDict *FreqDict
	ItemDict *FreqDict
}

// LoadInteractions reads `user<sep>item[<sep>weight]` records. Missing weights
// default to 1. Repeated (user, item) records are summed.
func LoadInteractions(reader io.Reader, sep string, header bool) (*Interactions, error) {
	var (
		users    []int32
		items    []int32
		weights  []float64
		userDict = NewFreqDict()
		itemDict = NewFreqDict()
		err      error
	)
	sc := bufio.NewScanner(reader)
	readErr := ReadLines(sc, sep, func(lineNumber int, fields []string) bool {
		if header && lineNumber == 0 {
			return true
		}
		if len(fields) < 2 {
			err = errors.Errorf("line %d: expect at least 2 fields but got %d", lineNumber+1, len(fields))
			return false
		}
		weight := 1.0
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			weight, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				err = errors.Annotatef(err, "line %d", lineNumber+1)
				return false
			}
		}
		users = append(users, userDict.Id(strings.TrimSpace(fields[0])))
		items = append(items, itemDict.Id(strings.TrimSpace(fields[1])))
		weights = append(weights, weight)
		return true
	})
	if readErr != nil {
		return nil, errors.Trace(readErr)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewInteractionMatrix(userDict.Count(), itemDict.Count(), users, items, weights)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("load interactions",
		zap.Int("n_users", userDict.Count()),
		zap.Int("n_items", itemDict.Count()),
		zap.Int("n_interactions", m.Nnz()))
	return &Interactions{Matrix: m, UserDict: userDict, ItemDict: itemDict}, nil
}
