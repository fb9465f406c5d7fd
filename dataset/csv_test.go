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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func splitLines(t *testing.T, text string) [][]string {
	return splitLinesBy(t, text, ",")
}

func splitLinesBy(t *testing.T, text, sep string) [][]string {
	sc := bufio.NewScanner(strings.NewReader(text))
	lines := make([][]string, 0)
	err := ReadLines(sc, sep, func(_ int, fields []string) bool {
		lines = append(lines, fields)
		return fields[0] != "STOP"
	})
	assert.NoError(t, err)
	return lines
}

func TestReadLines(t *testing.T) {
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}},
		splitLines(t, "1,2,3\r\n4,5,6\r\n"))
	assert.Equal(t, [][]string{{"1,2", "3,4"}, {"2,3", "4,6"}},
		splitLines(t, "\"1,2\",\"3,4\"\r\n\"2,3\",\"4,6\""))
	assert.Equal(t, [][]string{{"\"a\"", "b"}},
		splitLines(t, "\"\"\"a\"\"\",b"))
	assert.Equal(t, [][]string{{"1\r\n2", "3"}},
		splitLines(t, "\"1\r\n2\",3"))
	assert.Equal(t, [][]string{{"1", "2"}, {"STOP"}},
		splitLines(t, "1,2\r\nSTOP\r\n7,8"))
	// multi-character separators
	assert.Equal(t, [][]string{{"1", "10", "5"}, {"2", "", "3:4"}},
		splitLinesBy(t, "1::10::5\n2::::3:4\n", "::"))
	assert.Equal(t, [][]string{{"a::b", "c"}},
		splitLinesBy(t, "\"a::b\"::c", "::"))
	assert.Equal(t, [][]string{{"é", "ü"}},
		splitLinesBy(t, "é\tü", "\t"))
}

func TestLoadInteractions(t *testing.T) {
	text := "user,item,weight\n" +
		"u1,i1,1\n" +
		"u1,i2,2\n" +
		"u2,i2,\n" +
		"u2,i2,0.5\n" +
		"u3,i3,3\n"
	interactions, err := LoadInteractions(strings.NewReader(text), ",", true)
	assert.NoError(t, err)
	assert.Equal(t, 3, interactions.UserDict.Count())
	assert.Equal(t, 3, interactions.ItemDict.Count())
	assert.Equal(t, 4, interactions.Matrix.Nnz())
	u2, _ := interactions.UserDict.Lookup("u2")
	i2, _ := interactions.ItemDict.Lookup("i2")
	assert.Equal(t, 1.5, interactions.Matrix.At(int(u2), int(i2)))
	assert.Equal(t, 3, interactions.ItemDict.Freq(i2))
}

func TestLoadInteractionsWithoutWeight(t *testing.T) {
	interactions, err := LoadInteractions(strings.NewReader("a\tx\nb\ty\na\ty"), "\t", false)
	assert.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0, 1}, interactions.Matrix.ToDense().RawMatrix().Data)
	assert.Equal(t, 3, interactions.Matrix.Nnz())
	assert.Equal(t, []float64{1, 2}, interactions.Matrix.ItemPopularity())
}

func TestLoadInteractionsMultiCharSeparator(t *testing.T) {
	text := "1::10::5\n1::20::3\n2::10::4\n"
	interactions, err := LoadInteractions(strings.NewReader(text), "::", false)
	assert.NoError(t, err)
	assert.Equal(t, 2, interactions.UserDict.Count())
	assert.Equal(t, 2, interactions.ItemDict.Count())
	u1, _ := interactions.UserDict.Lookup("1")
	i20, _ := interactions.ItemDict.Lookup("20")
	assert.Equal(t, 3.0, interactions.Matrix.At(int(u1), int(i20)))
}

func TestLoadInteractionsInvalid(t *testing.T) {
	_, err := LoadInteractions(strings.NewReader("a\n"), ",", false)
	assert.Error(t, err)
	_, err = LoadInteractions(strings.NewReader("a,b,c\n"), ",", false)
	assert.Error(t, err)
}
