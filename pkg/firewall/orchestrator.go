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
	"context"
	"fmt"
	"sync"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
	"k8s.io/klog/v2"
)

/* InternetChainRules is the shared unrestricted-egress chain content: an
 * accept-everything rule plus one return rule per private range.
 */
func InternetChainRules() []types.Rule {
	rules := []types.Rule{
		{
			Protocol:    types.IPProto,
			Source:      types.AnyAddr,
			Destination: types.AnyAddr,
			Target:      types.Accept(),
		},
	}
	for _, ipRange := range types.PrivateIPRanges {
		rules = append(rules, types.Rule{
			Protocol:    types.IPProto,
			Source:      types.AnyAddr,
			Destination: ipRange,
			Target:      types.Return(),
		})
	}
	return rules
}

/* EnsureInternetChain installs the shared internet chain. It must exist
 * before any service chain jumps into it.
 */
func EnsureInternetChain(tables Tables) error {
	if err := tables.EnsureChain(types.InternetChain, InternetChainRules()); err != nil {
		return fmt.Errorf("ensuring %s: %w", types.InternetChain, err)
	}
	return nil
}

/* Result is what one reconciliation pass produced. Failures are enumerable
 * so a single faulty service's policy is visible without blocking the rest.
 */
type Result struct {
	ServiceChains     map[string]MACSet
	Failures          []GroupFailure
	CollectedChains   []string
	SkippedCollection []string
}

/* Orchestrator sequences one full reconciliation pass. It holds no state
 * between runs: everything is re-derived from current discovery and current
 * config, which is what makes passes idempotent.
 */
type Orchestrator struct {
	tables     Tables
	discoverer Discoverer
	store      ConfigStore
	configRoot string

	/* The kernel table is a shared resource with no transactional isolation
	 * across a whole pass; overlapping passes must not interleave.
	 */
	runLock sync.Mutex
}

func NewOrchestrator(tables Tables, discoverer Discoverer, store ConfigStore, configRoot string) *Orchestrator {
	return &Orchestrator{
		tables:     tables,
		discoverer: discoverer,
		store:      store,
		configRoot: configRoot,
	}
}

/* GeneralUpdate runs one pass: baseline internet chain, service chains,
 * dispatch chain, garbage collection. A transport error aborts before
 * garbage collection so a failed run never tears down previous good state.
 */
func (o *Orchestrator) GeneralUpdate(ctx context.Context) (*Result, error) {
	o.runLock.Lock()
	defer o.runLock.Unlock()

	passID := utils.GeneratePassID()
	klog.V(2).Infof("[GeneralUpdate, ID: %s] Starting reconciliation pass (config root: %s).", passID, o.configRoot)

	if err := EnsureInternetChain(o.tables); err != nil {
		return nil, fmt.Errorf("pass %s: %w", passID, err)
	}

	instances, err := o.discoverer.ServicesRunningHere(ctx)
	if err != nil {
		return nil, fmt.Errorf("pass %s: discovering running services: %w", passID, err)
	}

	groups := ActiveServiceGroups(instances, o.configRoot)
	serviceChains, failures, err := EnsureServiceChains(o.tables, o.store, groups)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", passID, err)
	}

	/* A failed group's existing chain stays untouched: it keeps routing its
	 * MACs and is shielded from collection until its policy compiles again.
	 */
	retained, err := RetainFailedChains(o.tables, groups, failures)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", passID, err)
	}
	for chain, macs := range retained {
		serviceChains[chain] = macs
	}

	if err := EnsureDispatchChains(o.tables, serviceChains); err != nil {
		return nil, fmt.Errorf("pass %s: %w", passID, err)
	}

	removed, skipped, err := CollectStaleServiceChains(o.tables, serviceChains)
	if err != nil {
		return nil, fmt.Errorf("pass %s: %w", passID, err)
	}

	for i := range failures {
		klog.Errorf("[GeneralUpdate, ID: %s] Service group failed: %s \n", passID, failures[i])
	}
	klog.V(2).Infof("[GeneralUpdate, ID: %s] Pass finished: %d chains, %d failures, %d collected, %d skipped.",
		passID, len(serviceChains), len(failures), len(removed), len(skipped))

	return &Result{
		ServiceChains:     serviceChains,
		Failures:          failures,
		CollectedChains:   removed,
		SkippedCollection: skipped,
	}, nil
}
