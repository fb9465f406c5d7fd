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

package evaluation

import (
	"fmt"

	"github.com/juju/errors"
)

// ErrNotImplemented may be returned by a BlockScorer to request the per-index
// scoring path for the rest of the call.
var ErrNotImplemented = errors.NotImplemented

// InvalidInputError reports malformed ground truth, restrictions or shapes.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Message
}

func invalidInput(format string, args ...any) error {
	return errors.Trace(&InvalidInputError{Message: fmt.Sprintf(format, args...)})
}

// ConfigurationError reports invalid evaluator settings.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Message
}

func invalidConfig(format string, args ...any) error {
	return errors.Trace(&ConfigurationError{Message: fmt.Sprintf(format, args...)})
}

// LayoutWarning is emitted when a score block is not row-major and has been copied.
type LayoutWarning struct {
	Rows int
	Cols int
}

func (w *LayoutWarning) Error() string {
	return fmt.Sprintf("score block (%d×%d) is not row-major and has been copied", w.Rows, w.Cols)
}

// CollaboratorContractViolation reports a scoring model that broke its contract.
type CollaboratorContractViolation struct {
	Message string
	Err     error
}

func (e *CollaboratorContractViolation) Error() string {
	if e.Err != nil {
		return "scorer contract violation: " + e.Message + ": " + e.Err.Error()
	}
	return "scorer contract violation: " + e.Message
}

func (e *CollaboratorContractViolation) Unwrap() error {
	return e.Err
}

func contractViolation(err error, format string, args ...any) error {
	return errors.Trace(&CollaboratorContractViolation{Message: fmt.Sprintf(format, args...), Err: err})
}
