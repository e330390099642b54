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
package types

import (
	"encoding/json"
	"fmt"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
)

/* ServiceGroup identifies one group of service instances sharing a policy.
 * It is a plain comparable value: two groups are the same iff all four
 * fields match, and it can be used directly as a map key.
 */
type ServiceGroup struct {
	Service    string
	Instance   string
	Framework  string
	ConfigRoot string
}

/* canonicalJSON is the serialized identity that feeds the chain-name hash.
 * Field order and JSON encoding are part of the chain-name contract: changing
 * either renames every chain on every host.
 */
func (sg ServiceGroup) canonicalJSON() string {
	raw, err := json.Marshal([4]string{sg.Service, sg.Instance, sg.Framework, sg.ConfigRoot})
	if err != nil {
		/* An array of four strings always marshals. */
		panic(fmt.Sprintf("ServiceGroup.canonicalJSON: %v", err))
	}
	return string(raw)
}

/* ChainName derives the firewall chain name for this group.
 *
 * Chain names are limited to MaxChainLength characters, so the service name
 * is truncated hard. The hash suffix keeps two services whose truncated
 * names collide from sharing a chain.
 */
func (sg ServiceGroup) ChainName() string {
	service := sg.Service
	if len(service) > ServiceNameTruncation {
		service = service[:ServiceNameTruncation]
	}
	chain := ChainPrefix + service + "." + utils.GenerateChainHash(sg.canonicalJSON())
	if len(chain) > MaxChainLength {
		/* Unreachable with the prefix/truncation/hash lengths above. A
		 * violation here is a defect, not a runtime condition.
		 */
		panic(fmt.Sprintf("chain name %q exceeds %d characters (%d)", chain, MaxChainLength, len(chain)))
	}
	return chain
}

func (sg ServiceGroup) String() string {
	return fmt.Sprintf("%s.%s (%s)", sg.Service, sg.Instance, sg.Framework)
}
