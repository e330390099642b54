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
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

const namespacesFile = "namespaces.yaml"

/* Dependencies is the dependency declaration set of one instance: symbolic
 * cluster-wide resources plus named service-discovery namespaces. Slice
 * order is the declared order and is preserved into the compiled rules.
 */
type Dependencies struct {
	WellKnown  []string `yaml:"well-known"`
	Namespaces []string `yaml:"namespaces"`
}

/* PolicyDocument is the declared network policy of one service instance.
 * It is read-only input: one document is loaded per service group per pass.
 */
type PolicyDocument struct {
	OutboundFirewall types.Posture `yaml:"outbound_firewall"`
	Dependencies     Dependencies  `yaml:"dependencies"`
}

/* namespaceEntry is one entry of a service's namespaces.yaml. */
type namespaceEntry struct {
	ProxyPort int `yaml:"proxy_port"`
}

/* Store reads service configuration from a config-root directory tree:
 *
 *   <root>/<service>/<framework>.yaml   map of instance name -> PolicyDocument
 *   <root>/<service>/namespaces.yaml    map of namespace suffix -> {proxy_port}
 */
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

/* ServiceConfig loads the policy document for one service instance. */
func (s *Store) ServiceConfig(service, instance, framework string) (*PolicyDocument, error) {
	path := filepath.Join(s.Root, service, framework+".yaml")
	klog.V(6).Infof("[Store.ServiceConfig] Loading %s (instance %s)", path, instance)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service config %s: %w", path, err)
	}

	var instances map[string]PolicyDocument
	if err := yaml.Unmarshal(raw, &instances); err != nil {
		return nil, fmt.Errorf("parsing service config %s: %w", path, err)
	}

	doc, ok := instances[instance]
	if !ok {
		return nil, fmt.Errorf("instance %q not found in %s", instance, path)
	}
	return &doc, nil
}

/* NamespaceProxyPort resolves a namespace ("service.suffix") to the TCP port
 * of its service-discovery proxy. The owning service is everything before
 * the first dot.
 */
func (s *Store) NamespaceProxyPort(namespace string) (int, error) {
	service, _, found := strings.Cut(namespace, ".")
	if !found {
		return 0, fmt.Errorf("namespace %q is not of the form service.suffix", namespace)
	}

	path := filepath.Join(s.Root, service, namespacesFile)
	klog.V(6).Infof("[Store.NamespaceProxyPort] Loading %s for namespace %s", path, namespace)

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading namespaces for service %s: %w", service, err)
	}

	var entries map[string]namespaceEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	/* namespaces.yaml is keyed by the suffix only; accept the fully
	 * qualified name too, so both spellings resolve.
	 */
	_, suffix, _ := strings.Cut(namespace, ".")
	entry, ok := entries[suffix]
	if !ok {
		entry, ok = entries[namespace]
	}
	if !ok {
		return 0, fmt.Errorf("namespace %q not declared in %s", namespace, path)
	}
	if entry.ProxyPort <= 0 || entry.ProxyPort > 65535 {
		return 0, fmt.Errorf("namespace %q has invalid proxy_port %d", namespace, entry.ProxyPort)
	}
	return entry.ProxyPort, nil
}
