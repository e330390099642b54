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
	"sort"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/config"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/discovery"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
)

/* fakeTables is an in-memory Tables implementation. Chains map to their
 * exact ordered rule lists, like the kernel table would.
 */
type fakeTables struct {
	chains map[string][]types.Rule

	ensureChainErr map[string]error
	ensureRuleErr  map[string]error
	deleteErr      map[string]error
	allChainsErr   error

	ensureChainCalls []string
	deleteCalls      []string
	allChainsCalls   int
}

func newFakeTables() *fakeTables {
	return &fakeTables{
		chains:         make(map[string][]types.Rule),
		ensureChainErr: make(map[string]error),
		ensureRuleErr:  make(map[string]error),
		deleteErr:      make(map[string]error),
	}
}

func (f *fakeTables) EnsureChain(name string, rules []types.Rule) error {
	f.ensureChainCalls = append(f.ensureChainCalls, name)
	if err := f.ensureChainErr[name]; err != nil {
		return err
	}
	f.chains[name] = append([]types.Rule(nil), rules...)
	return nil
}

func (f *fakeTables) EnsureRule(chain string, rule types.Rule) error {
	if err := f.ensureRuleErr[chain]; err != nil {
		return err
	}
	if _, ok := f.chains[chain]; !ok {
		return fmt.Errorf("chain %s does not exist", chain)
	}
	for _, existing := range f.chains[chain] {
		if existing.Equal(rule) {
			return nil
		}
	}
	f.chains[chain] = append(f.chains[chain], rule)
	return nil
}

func (f *fakeTables) AllChains() ([]string, error) {
	f.allChainsCalls++
	if f.allChainsErr != nil {
		return nil, f.allChainsErr
	}
	names := make([]string, 0, len(f.chains))
	for name := range f.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeTables) DeleteChain(name string) error {
	f.deleteCalls = append(f.deleteCalls, name)
	if err := f.deleteErr[name]; err != nil {
		return err
	}
	delete(f.chains, name)
	return nil
}

/* fakeStore serves policy documents and namespace ports from maps. Keys are
 * "service/instance/framework" and namespace names respectively.
 */
type fakeStore struct {
	docs  map[string]*config.PolicyDocument
	ports map[string]int

	serviceConfigErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:             make(map[string]*config.PolicyDocument),
		ports:            make(map[string]int),
		serviceConfigErr: make(map[string]error),
	}
}

func storeKey(service, instance, framework string) string {
	return service + "/" + instance + "/" + framework
}

func (f *fakeStore) ServiceConfig(service, instance, framework string) (*config.PolicyDocument, error) {
	key := storeKey(service, instance, framework)
	if err := f.serviceConfigErr[key]; err != nil {
		return nil, err
	}
	doc, ok := f.docs[key]
	if !ok {
		return nil, fmt.Errorf("no policy for %s", key)
	}
	return doc, nil
}

func (f *fakeStore) NamespaceProxyPort(namespace string) (int, error) {
	port, ok := f.ports[namespace]
	if !ok {
		return 0, fmt.Errorf("namespace %q not declared", namespace)
	}
	return port, nil
}

/* fakeDiscoverer returns a fixed instance list. */
type fakeDiscoverer struct {
	instances []discovery.ServiceInstance
	err       error
}

func (f *fakeDiscoverer) ServicesRunningHere(_ context.Context) ([]discovery.ServiceInstance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.instances, nil
}
