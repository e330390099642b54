/**
 * Copyright 2025 Marcelo Parisi (github.com/feitnomore)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package firewall

import (
	"errors"
	"fmt"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
)

/* ConfigError marks a failure caused by the declared policy itself: unknown
 * posture, unknown well-known resource, unresolvable namespace. It is fatal
 * to the one affected service group and never to the whole pass.
 */
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

/* GroupFailure records one service group whose policy could not be applied
 * during a pass. Its existing chain was left untouched.
 */
type GroupFailure struct {
	Group types.ServiceGroup
	Err   error
}

func (f GroupFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Group, f.Err)
}
