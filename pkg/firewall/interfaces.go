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

	"github.com/feitnomore/svcfw-nft-bridge/pkg/config"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/discovery"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
)

/* Tables is the table-control collaborator: the only thing that touches the
 * kernel. Errors from these methods are transport errors and abort the pass.
 */
type Tables interface {
	/* EnsureChain makes the named chain exist and contain exactly this
	 * ordered rule set, atomically from the caller's perspective.
	 */
	EnsureChain(name string, rules []types.Rule) error

	/* EnsureRule makes sure exactly one occurrence of the rule exists in a
	 * pre-existing chain, leaving the chain's other rules alone.
	 */
	EnsureRule(chain string, rule types.Rule) error

	/* AllChains enumerates every chain name currently present. */
	AllChains() ([]string, error)

	/* DeleteChain removes a chain. Fails while the chain is still jumped to. */
	DeleteChain(name string) error
}

/* Discoverer reports the service instances currently running on this host. */
type Discoverer interface {
	ServicesRunningHere(ctx context.Context) ([]discovery.ServiceInstance, error)
}

/* ConfigStore is the configuration collaborator. */
type ConfigStore interface {
	NamespaceResolver
	ServiceConfig(service, instance, framework string) (*config.PolicyDocument, error)
}

/* NamespaceResolver resolves a service-discovery namespace to the TCP port
 * of its local proxy. Split out of ConfigStore so the compiler depends on
 * exactly what it uses.
 */
type NamespaceResolver interface {
	NamespaceProxyPort(namespace string) (int, error)
}
