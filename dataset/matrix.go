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
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// InteractionMatrix is an immutable users × items sparse matrix backed by a
// CSR matrix. Column indices are sorted within each row and never repeat.
type InteractionMatrix struct {
	csr *sparse.CSR
}

func newInteractionMatrix(rows, cols int, indptr, indices []int, data []float64) *InteractionMatrix {
	return &InteractionMatrix{csr: sparse.NewCSR(rows, cols, indptr, indices, data)}
}

// NewInteractionMatrix builds a matrix from (user, item, weight) triplets.
// Weights may be nil, in which case every entry weighs 1. Duplicated
// (user, item) pairs are summed.
func NewInteractionMatrix(rows, cols int, users, items []int32, weights []float64) (*InteractionMatrix, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.Errorf("invalid shape (%d, %d)", rows, cols)
	}
	if len(users) != len(items) {
		return nil, errors.Errorf("length of users (%d) and items (%d) mismatch", len(users), len(items))
	}
	if weights != nil && len(weights) != len(users) {
		return nil, errors.Errorf("length of weights (%d) and users (%d) mismatch", len(weights), len(users))
	}
	for i := range users {
		if users[i] < 0 || int(users[i]) >= rows {
			return nil, errors.Errorf("user index %d out of range [0, %d)", users[i], rows)
		}
		if items[i] < 0 || int(items[i]) >= cols {
			return nil, errors.Errorf("item index %d out of range [0, %d)", items[i], cols)
		}
	}
	// COO compression keeps the input order within a row, so sort triplets
	// first and sum duplicates while they are adjacent
	order := make([]int, len(users))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if users[ia] != users[ib] {
			return users[ia] < users[ib]
		}
		return items[ia] < items[ib]
	})
	cooRows := make([]int, 0, len(order))
	cooCols := make([]int, 0, len(order))
	cooData := make([]float64, 0, len(order))
	for j, i := range order {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if j > 0 && users[i] == users[order[j-1]] && items[i] == items[order[j-1]] {
			cooData[len(cooData)-1] += w
			continue
		}
		cooRows = append(cooRows, int(users[i]))
		cooCols = append(cooCols, int(items[i]))
		cooData = append(cooData, w)
	}
	csr := sparse.NewCOO(rows, cols, cooRows, cooCols, cooData).ToCSR()
	return &InteractionMatrix{csr: csr}, nil
}

// NewInteractionMatrixFromRows builds a binary matrix from per-row item lists.
func NewInteractionMatrixFromRows(cols int, rows [][]int32) (*InteractionMatrix, error) {
	var users, items []int32
	for u, row := range rows {
		for _, i := range row {
			users = append(users, int32(u))
			items = append(items, i)
		}
	}
	return NewInteractionMatrix(len(rows), cols, users, items, nil)
}

// NewInteractionMatrixFromDense keeps the nonzero entries of a dense matrix.
func NewInteractionMatrixFromDense(d mat.Matrix) *InteractionMatrix {
	rows, cols := d.Dims()
	indptr := make([]int, rows+1)
	var (
		indices []int
		data    []float64
	)
	for u := 0; u < rows; u++ {
		for i := 0; i < cols; i++ {
			if v := d.At(u, i); v != 0 {
				indices = append(indices, i)
				data = append(data, v)
			}
		}
		indptr[u+1] = len(indices)
	}
	return newInteractionMatrix(rows, cols, indptr, indices, data)
}

// NewEmptyInteractionMatrix creates a matrix without any entry.
func NewEmptyInteractionMatrix(rows, cols int) *InteractionMatrix {
	return newInteractionMatrix(rows, cols, make([]int, rows+1), nil, nil)
}

// CSR exposes the underlying sparse matrix. It must not be modified.
func (m *InteractionMatrix) CSR() *sparse.CSR {
	return m.csr
}

// Shape returns the number of rows and columns.
func (m *InteractionMatrix) Shape() (int, int) {
	return m.csr.Dims()
}

// CountUsers returns the number of rows.
func (m *InteractionMatrix) CountUsers() int {
	return m.csr.RawMatrix().I
}

// CountItems returns the number of columns.
func (m *InteractionMatrix) CountItems() int {
	return m.csr.RawMatrix().J
}

// Nnz returns the number of stored entries. Row slices share storage with
// their parent, so the count comes from the row pointers.
func (m *InteractionMatrix) Nnz() int {
	raw := m.csr.RawMatrix()
	return raw.Indptr[raw.I] - raw.Indptr[0]
}

// Row returns the column indices and weights of a row. The slices must not be modified.
func (m *InteractionMatrix) Row(u int) ([]int, []float64) {
	raw := m.csr.RawMatrix()
	begin, end := raw.Indptr[u], raw.Indptr[u+1]
	return raw.Ind[begin:end:end], raw.Data[begin:end:end]
}

// RowNnz returns the number of stored entries in a row.
func (m *InteractionMatrix) RowNnz(u int) int {
	return m.csr.RowNNZ(u)
}

// At returns the weight at (u, i).
func (m *InteractionMatrix) At(u, i int) float64 {
	indices, data := m.Row(u)
	j := sort.SearchInts(indices, i)
	if j < len(indices) && indices[j] == i {
		return data[j]
	}
	return 0
}

// SliceRows returns rows [start, end) as a new matrix sharing storage with m.
func (m *InteractionMatrix) SliceRows(start, end int) *InteractionMatrix {
	raw := m.csr.RawMatrix()
	if start < 0 || end > raw.I || start > end {
		panic(errors.Errorf("row slice [%d, %d) out of range [0, %d)", start, end, raw.I))
	}
	return newInteractionMatrix(end-start, raw.J, raw.Indptr[start:end+1], raw.Ind, raw.Data)
}

// Transpose returns the items × users matrix.
func (m *InteractionMatrix) Transpose() *InteractionMatrix {
	rows, cols := m.Shape()
	nnz := m.Nnz()
	cooRows := make([]int, 0, nnz)
	cooCols := make([]int, 0, nnz)
	cooData := make([]float64, 0, nnz)
	m.csr.DoNonZero(func(u, i int, v float64) {
		cooRows = append(cooRows, u)
		cooCols = append(cooCols, i)
		cooData = append(cooData, v)
	})
	// entries are visited row by row, so users stay sorted within each column
	raw := sparse.NewCOO(rows, cols, cooRows, cooCols, cooData).ToCSC().RawMatrix()
	return newInteractionMatrix(cols, rows, raw.Indptr, raw.Ind, raw.Data)
}

// ToDense converts the matrix to a row-major dense matrix.
func (m *InteractionMatrix) ToDense() *mat.Dense {
	if rows, cols := m.Shape(); rows == 0 || cols == 0 {
		return &mat.Dense{}
	}
	return m.csr.ToDense()
}

// ItemPopularity returns the sum of weights of each column.
func (m *InteractionMatrix) ItemPopularity() []float64 {
	popularity := make([]float64, m.CountItems())
	m.csr.DoNonZero(func(_, i int, v float64) {
		popularity[i] += v
	})
	return popularity
}

// Map returns a matrix with the same sparsity pattern and weights replaced by fn(u, i, w).
func (m *InteractionMatrix) Map(fn func(u, i int, w float64) float64) *InteractionMatrix {
	rows, cols := m.Shape()
	indptr := make([]int, rows+1)
	indices := make([]int, 0, m.Nnz())
	data := make([]float64, 0, m.Nnz())
	for u := 0; u < rows; u++ {
		m.csr.DoRowNonZero(u, func(u, i int, v float64) {
			indices = append(indices, i)
			data = append(data, fn(u, i, v))
		})
		indptr[u+1] = len(indices)
	}
	return newInteractionMatrix(rows, cols, indptr, indices, data)
}

// TFIDFWeight reweights entries by the inverse document frequency of their columns,
// treating each row as a document.
func (m *InteractionMatrix) TFIDFWeight(smooth bool) *InteractionMatrix {
	rows, cols := m.Shape()
	df := make([]float64, cols)
	m.csr.DoNonZero(func(_, i int, _ float64) {
		df[i]++
	})
	smoothing := 0.0
	if smooth {
		smoothing = 1
	}
	idf := make([]float64, cols)
	for i := range idf {
		idf[i] = math.Log(float64(rows) / (df[i] + smoothing))
	}
	return m.Map(func(_, i int, w float64) float64 {
		return w * idf[i]
	})
}

// BM25Weight applies Okapi BM25 weighting with parameters k1 and b.
func (m *InteractionMatrix) BM25Weight(k1, b float64) *InteractionMatrix {
	rows, cols := m.Shape()
	df := make([]float64, cols)
	docLength := make([]float64, rows)
	totalLength := 0.0
	m.csr.DoNonZero(func(u, i int, v float64) {
		df[i]++
		docLength[u] += v
		totalLength += v
	})
	avgLength := totalLength / float64(rows)
	idf := make([]float64, cols)
	for i := range idf {
		idf[i] = math.Log(float64(rows)/(df[i]+1) + 1)
	}
	return m.Map(func(u, i int, w float64) float64 {
		regularizer := k1 * (1 - b + b*docLength[u]/avgLength)
		return idf[i] * (w * (k1 + 1)) / (w + regularizer)
	})
}

// VStack stacks matrices vertically. All matrices must have the same number of columns.
func VStack(matrices ...*InteractionMatrix) (*InteractionMatrix, error) {
	if len(matrices) == 0 {
		return nil, errors.New("no matrix to stack")
	}
	cols := matrices[0].CountItems()
	var (
		rows    int
		indptr  = []int{0}
		indices []int
		data    []float64
	)
	for _, m := range matrices {
		if m.CountItems() != cols {
			return nil, errors.Errorf("column count mismatch: %d != %d", m.CountItems(), cols)
		}
		for u := 0; u < m.CountUsers(); u++ {
			rowIndices, rowData := m.Row(u)
			indices = append(indices, rowIndices...)
			data = append(data, rowData...)
			indptr = append(indptr, len(indices))
		}
		rows += m.CountUsers()
	}
	return newInteractionMatrix(rows, cols, indptr, indices, data), nil
}

// SelectRows returns a matrix made of the given rows in the given order.
func (m *InteractionMatrix) SelectRows(rows []int32) *InteractionMatrix {
	indptr := make([]int, 1, len(rows)+1)
	var (
		indices []int
		data    []float64
	)
	for _, u := range rows {
		rowIndices, rowData := m.Row(int(u))
		indices = append(indices, rowIndices...)
		data = append(data, rowData...)
		indptr = append(indptr, len(indices))
	}
	return newInteractionMatrix(len(rows), m.CountItems(), indptr, indices, data)
}
