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
	"fmt"
	"sort"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
	"k8s.io/klog/v2"
)

/* DispatchRules builds the content of the dispatch chain: one rule per
 * (chain, MAC) pair matching the source MAC and jumping into the service
 * chain. The rules are mutually exclusive, so their order carries no
 * semantics; they are emitted sorted so repeated passes produce identical
 * chain contents.
 */
func DispatchRules(serviceChains map[string]MACSet) []types.Rule {
	chainNames := make([]string, 0, len(serviceChains))
	for chain := range serviceChains {
		chainNames = append(chainNames, chain)
	}
	sort.Strings(chainNames)

	var rules []types.Rule
	for _, chain := range chainNames {
		macs := make([]string, 0, len(serviceChains[chain]))
		for mac := range serviceChains[chain] {
			macs = append(macs, utils.NormalizeMAC(mac))
		}
		sort.Strings(macs)

		for _, mac := range macs {
			rules = append(rules, types.Rule{
				Protocol:    types.IPProto,
				Source:      types.AnyAddr,
				Destination: types.AnyAddr,
				Target:      types.JumpTo(chain),
				Matches: []types.Match{
					{
						Name:   types.MatchMAC,
						Params: []types.MatchParam{{Key: types.ParamMACSource, Value: mac}},
					},
				},
			})
		}
	}
	return rules
}

/* EnsureDispatchChains installs the dispatch chain as an exact set and makes
 * sure the two traffic-entry chains jump into it. The entry chains carry
 * unrelated rules, so the jump uses ensure-rule semantics rather than a
 * replace.
 */
func EnsureDispatchChains(tables Tables, serviceChains map[string]MACSet) error {
	rules := DispatchRules(serviceChains)
	if err := tables.EnsureChain(types.DispatchChain, rules); err != nil {
		return fmt.Errorf("ensuring dispatch chain %s: %w", types.DispatchChain, err)
	}
	klog.V(4).Infof("[EnsureDispatchChains] Dispatch chain %s: %d rules.", types.DispatchChain, len(rules))

	jump := types.Rule{
		Protocol:    types.IPProto,
		Source:      types.AnyAddr,
		Destination: types.AnyAddr,
		Target:      types.JumpTo(types.DispatchChain),
	}
	for _, entry := range []string{types.InputChain, types.ForwardChain} {
		if err := tables.EnsureRule(entry, jump); err != nil {
			return fmt.Errorf("ensuring jump to %s in %s: %w", types.DispatchChain, entry, err)
		}
	}
	return nil
}
