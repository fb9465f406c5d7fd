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
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks values of the configuration.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, e := range validationErrors {
				messages = append(messages, validationMessage(e))
			}
			return errors.NotValidf("config: %s", strings.Join(messages, "; "))
		}
		return errors.Trace(err)
	}
	if config.Data.ValidationRatio+config.Data.TestRatio >= 1 {
		return errors.NotValidf("config: sum of `data.validation_ratio` and `data.test_ratio` must be less than 1, but the current value is %v",
			config.Data.ValidationRatio+config.Data.TestRatio)
	}
	return nil
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("value of `%s` must not be empty", e.Namespace())
	case "oneof":
		return fmt.Sprintf("value of `%s` must be one of [%s], but the current value is %v",
			e.Namespace(), e.Param(), e.Value())
	default:
		return fmt.Sprintf("value of `%s` must satisfy %s=%s, but the current value is %v",
			e.Namespace(), e.Tag(), e.Param(), e.Value())
	}
}
