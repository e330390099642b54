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
	"strings"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"k8s.io/klog/v2"
)

/* CollectStaleServiceChains removes service chains that match our naming
 * prefix but are no longer desired. Chains outside the prefix are never
 * candidates, whatever their state.
 *
 * A chain that cannot be removed (still referenced from another chain) is
 * reported and skipped; it will be retried on the next pass once the
 * dispatch chain no longer points at it.
 */
func CollectStaleServiceChains(tables Tables, desired map[string]MACSet) (removed, skipped []string, err error) {
	present, err := tables.AllChains()
	if err != nil {
		return nil, nil, fmt.Errorf("listing chains: %w", err)
	}

	var stale []string
	for _, chain := range present {
		if strings.HasPrefix(chain, types.ChainPrefix) && desired[chain] == nil {
			stale = append(stale, chain)
		}
	}
	sort.Strings(stale)

	for _, chain := range stale {
		if delErr := tables.DeleteChain(chain); delErr != nil {
			klog.Warningf("[CollectStaleServiceChains] Could not remove stale chain %s: %v. Will retry next pass.", chain, delErr)
			skipped = append(skipped, chain)
			continue
		}
		klog.V(3).Infof("[CollectStaleServiceChains] Removed stale chain %s.", chain)
		removed = append(removed, chain)
	}
	return removed, skipped, nil
}
