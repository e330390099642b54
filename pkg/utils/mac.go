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
package utils

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

/* Accepts XX:XX:XX:XX:XX:XX, XX-XX-XX-XX-XX-XX, and XXXXXXXXXXXX. */
var macRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$|^([0-9A-Fa-f]{12})$`)

/* ParseMAC converts a MAC string to the 6 raw bytes a link-layer payload
 * compare needs. Dispatch rules carry MACs as strings, so this runs on
 * every dispatch rule compilation.
 */
func ParseMAC(macStr string) (net.HardwareAddr, error) {
	if !macRegex.MatchString(macStr) {
		return nil, fmt.Errorf("invalid MAC address format: %s", macStr)
	}

	/* net.ParseMAC wants delimiters; rebuild them for the bare form. */
	parsable := macStr
	if !strings.ContainsAny(macStr, ":-") {
		var sb strings.Builder
		for i := 0; i < len(macStr); i += 2 {
			if i > 0 {
				sb.WriteByte(':')
			}
			sb.WriteString(macStr[i : i+2])
		}
		parsable = sb.String()
	}

	hwAddr, err := net.ParseMAC(parsable)
	if err != nil {
		return nil, fmt.Errorf("net.ParseMAC failed for '%s' (original '%s'): %w", parsable, macStr, err)
	}
	return hwAddr, nil
}

/* NormalizeMAC upper-cases a MAC address string. Discovery reports MACs in
 * whatever case the kernel hands out; rule comparison needs one case.
 */
func NormalizeMAC(macStr string) string {
	return strings.ToUpper(macStr)
}
