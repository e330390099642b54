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

	"github.com/feitnomore/svcfw-nft-bridge/pkg/discovery"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
	"k8s.io/klog/v2"
)

/* MACSet is the set of link-layer addresses authorized to use one chain. */
type MACSet map[string]bool

/* ActiveServiceGroups folds the discovery stream into one MAC set per
 * distinct service group. Instances of the same group on the same host
 * accumulate into one set.
 */
func ActiveServiceGroups(instances []discovery.ServiceInstance, configRoot string) map[types.ServiceGroup]MACSet {
	groups := make(map[types.ServiceGroup]MACSet)
	for _, instance := range instances {
		group := types.ServiceGroup{
			Service:    instance.Service,
			Instance:   instance.Instance,
			Framework:  instance.Framework,
			ConfigRoot: configRoot,
		}
		if groups[group] == nil {
			groups[group] = make(MACSet)
		}
		groups[group][utils.NormalizeMAC(instance.MAC)] = true
	}
	klog.V(5).Infof("[ActiveServiceGroups] %d instances -> %d service groups.", len(instances), len(groups))
	return groups
}

/* EnsureServiceChains compiles and installs the chain of every active
 * service group and returns the chain -> MAC set mapping for dispatch.
 *
 * A ConfigError is scoped to its group: it is recorded and the loop
 * continues, leaving that group's existing chain untouched. A table-control
 * error is a transport error and aborts the whole pass.
 */
func EnsureServiceChains(tables Tables, store ConfigStore, groups map[types.ServiceGroup]MACSet) (map[string]MACSet, []GroupFailure, error) {
	chains := make(map[string]MACSet, len(groups))
	var failures []GroupFailure

	/* Map iteration order is random; walk groups sorted by chain name so
	 * repeated passes apply operations in the same order.
	 */
	ordered := make([]types.ServiceGroup, 0, len(groups))
	for group := range groups {
		ordered = append(ordered, group)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ChainName() < ordered[j].ChainName()
	})

	for _, group := range ordered {
		chainName := group.ChainName()

		rules, err := groupRules(store, group)
		if err != nil {
			klog.Errorf("[EnsureServiceChains] Skipping %s (chain %s): %v \n", group, chainName, err)
			failures = append(failures, GroupFailure{Group: group, Err: err})
			continue
		}

		if err := tables.EnsureChain(chainName, rules); err != nil {
			return nil, failures, fmt.Errorf("ensuring chain %s for %s: %w", chainName, group, err)
		}
		klog.V(4).Infof("[EnsureServiceChains] Chain %s: %d rules, %d MACs.", chainName, len(rules), len(groups[group]))
		chains[chainName] = groups[group]
	}

	klog.V(3).Infof("[EnsureServiceChains] Reconciled %d chains, %d group failures.", len(chains), len(failures))
	return chains, failures, nil
}

/* groupRules loads one group's policy document and compiles it. Load
 * failures (missing file, missing instance) count as configuration errors:
 * they are declared-state problems, not transport problems.
 */
func groupRules(store ConfigStore, group types.ServiceGroup) ([]types.Rule, error) {
	doc, err := store.ServiceConfig(group.Service, group.Instance, group.Framework)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return CompileRules(doc, store)
}

/* RetainFailedChains maps each failed group to its chain when that chain
 * already exists on the host. The chain still carries the last rules that
 * compiled, so its traffic stays policed: it keeps its dispatch entry and
 * the collector must not treat it as stale.
 */
func RetainFailedChains(tables Tables, groups map[types.ServiceGroup]MACSet, failures []GroupFailure) (map[string]MACSet, error) {
	if len(failures) == 0 {
		return nil, nil
	}

	present, err := tables.AllChains()
	if err != nil {
		return nil, fmt.Errorf("listing chains for failed groups: %w", err)
	}
	presentSet := make(map[string]bool, len(present))
	for _, chain := range present {
		presentSet[chain] = true
	}

	retained := make(map[string]MACSet)
	for _, failure := range failures {
		chainName := failure.Group.ChainName()
		if !presentSet[chainName] {
			klog.V(4).Infof("[RetainFailedChains] Group %s has no existing chain %s, nothing to retain.", failure.Group, chainName)
			continue
		}
		klog.Warningf("[RetainFailedChains] Keeping chain %s for %s despite its policy failure.", chainName, failure.Group)
		retained[chainName] = groups[failure.Group]
	}
	return retained, nil
}
