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
	"strconv"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/config"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"k8s.io/klog/v2"
)

/* CompileRules turns one policy document into the ordered rule list of a
 * service chain. The order is the effective precedence and is fixed:
 * default-posture rule, then well-known dependency rules, then namespace
 * dependency rules. Within a group the declared order is preserved.
 *
 * Any error is a ConfigError: the caller must leave the group's existing
 * chain untouched rather than install a partial rule set.
 */
func CompileRules(doc *config.PolicyDocument, resolver NamespaceResolver) ([]types.Rule, error) {
	defRule, err := defaultRule(doc)
	if err != nil {
		return nil, err
	}

	rules := []types.Rule{defRule}

	wkRules, err := wellKnownRules(doc)
	if err != nil {
		return nil, err
	}
	rules = append(rules, wkRules...)

	nsRules, err := namespaceRules(doc, resolver)
	if err != nil {
		return nil, err
	}
	rules = append(rules, nsRules...)

	klog.V(6).Infof("[CompileRules] Compiled %d rules (posture %s, %d well-known, %d namespaces).",
		len(rules), doc.OutboundFirewall, len(wkRules), len(nsRules))
	return rules, nil
}

/* defaultRule is the single match-all rule carrying the outbound posture.
 * An unrecognized posture is an error, never a silent default.
 */
func defaultRule(doc *config.PolicyDocument) (types.Rule, error) {
	switch doc.OutboundFirewall {
	case types.PostureBlock:
		return types.Rule{
			Protocol:    types.IPProto,
			Source:      types.AnyAddr,
			Destination: types.AnyAddr,
			Target:      types.Reject(),
		}, nil
	case types.PostureMonitor:
		return types.Rule{
			Protocol:    types.IPProto,
			Source:      types.AnyAddr,
			Destination: types.AnyAddr,
			Target:      types.Log(),
		}, nil
	default:
		return types.Rule{}, configErrorf("unrecognized outbound posture %q", doc.OutboundFirewall)
	}
}

/* wellKnownRules emits one jump per declared symbolic resource into its
 * shared cluster-wide chain.
 */
func wellKnownRules(doc *config.PolicyDocument) ([]types.Rule, error) {
	var rules []types.Rule
	for _, resource := range doc.Dependencies.WellKnown {
		switch resource {
		case types.WellKnownInternet:
			rules = append(rules, types.Rule{
				Protocol:    types.IPProto,
				Source:      types.AnyAddr,
				Destination: types.AnyAddr,
				Target:      types.JumpTo(types.InternetChain),
			})
		default:
			return nil, configErrorf("unknown well-known resource %q", resource)
		}
	}
	return rules, nil
}

/* namespaceRules emits one accept per declared namespace dependency, scoped
 * to the discovery proxy address and the namespace's resolved TCP port.
 */
func namespaceRules(doc *config.PolicyDocument, resolver NamespaceResolver) ([]types.Rule, error) {
	var rules []types.Rule
	for _, namespace := range doc.Dependencies.Namespaces {
		port, err := resolver.NamespaceProxyPort(namespace)
		if err != nil {
			return nil, configErrorf("resolving namespace %q: %w", namespace, err)
		}
		rules = append(rules, types.Rule{
			Protocol:    types.TCPProto,
			Source:      types.AnyAddr,
			Destination: types.DiscoveryProxyAddr,
			Target:      types.Accept(),
			Matches: []types.Match{
				{
					Name:   types.MatchTCP,
					Params: []types.MatchParam{{Key: types.ParamDPort, Value: strconv.Itoa(port)}},
				},
			},
		})
	}
	return rules, nil
}
