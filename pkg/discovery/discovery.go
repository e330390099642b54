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
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"
	"k8s.io/klog/v2"
)

/* AliasPrefix marks host links that belong to a managed service instance.
 * The full alias format is "svcfw:<framework>/<service>/<instance>"; it is
 * set by whatever provisions the instance's interface.
 */
const AliasPrefix = "svcfw:"

/* ServiceInstance is one running instance on this host: its identity tuple
 * plus the link-layer address its traffic originates from.
 */
type ServiceInstance struct {
	Service   string
	Instance  string
	Framework string
	MAC       string
}

/* ParseLinkAlias extracts a service instance identity from a link alias.
 * Returns false for links that are not ours or carry a malformed alias.
 */
func ParseLinkAlias(alias string) (ServiceInstance, bool) {
	if !strings.HasPrefix(alias, AliasPrefix) {
		return ServiceInstance{}, false
	}
	parts := strings.Split(strings.TrimPrefix(alias, AliasPrefix), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ServiceInstance{}, false
	}
	return ServiceInstance{
		Framework: parts[0],
		Service:   parts[1],
		Instance:  parts[2],
	}, true
}

/* LinkDiscoverer enumerates running service instances by walking the host's
 * network links and matching aliases.
 */
type LinkDiscoverer struct{}

func NewLinkDiscoverer() *LinkDiscoverer {
	return &LinkDiscoverer{}
}

/* ServicesRunningHere returns one tuple per managed link on the host. */
func (d *LinkDiscoverer) ServicesRunningHere(ctx context.Context) ([]ServiceInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("netlink.LinkList failed: %w", err)
	}
	klog.V(5).Infof("[LinkDiscoverer] Processing %d links.", len(links))

	var instances []ServiceInstance
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil || attrs.Alias == "" {
			continue
		}
		instance, ok := ParseLinkAlias(attrs.Alias)
		if !ok {
			if strings.HasPrefix(attrs.Alias, AliasPrefix) {
				klog.Warningf("[LinkDiscoverer] Link %s has malformed alias %q, skipping.", attrs.Name, attrs.Alias)
			}
			continue
		}
		if len(attrs.HardwareAddr) == 0 {
			klog.V(4).Infof("[LinkDiscoverer] Link %s (%s) has no MAC address, skipping.", attrs.Name, attrs.Alias)
			continue
		}
		instance.MAC = attrs.HardwareAddr.String()
		klog.V(6).Infof("[LinkDiscoverer] Link %s -> %s.%s (%s) MAC %s", attrs.Name, instance.Service, instance.Instance, instance.Framework, instance.MAC)
		instances = append(instances, instance)
	}
	klog.V(5).Infof("[LinkDiscoverer] Found %d managed instances.", len(instances))
	return instances, nil
}
