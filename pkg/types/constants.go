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

type Posture string

const (
	/* Chains */
	ChainPrefix    = "SVCFW."         /* Every per-service chain starts with this      */
	DispatchChain  = "SVCFW"          /* MAC-keyed dispatch into per-service chains    */
	InternetChain  = "SVCFW-INTERNET" /* Shared chain for the well-known internet dep  */
	InputChain     = "SVCFW_INPUT"    /* Entry chain on the input hook                 */
	ForwardChain   = "SVCFW_FORWARD"  /* Entry chain on the forward hook               */
	MaxChainLength = 28               /* Subsystem limit on chain name length          */

	/* ChainName composition: prefix + truncated service + "." + hash suffix */
	ServiceNameTruncation = 10

	/* Tables */
	TableFilter = "filter"

	/* Outbound postures */
	PostureBlock   Posture = "block"
	PostureMonitor Posture = "monitor"

	/* Protocols */
	IPProto  = "ip"
	TCPProto = "tcp"

	/* Well-known dependency resources */
	WellKnownInternet = "internet"

	/* Service-discovery proxy endpoint for namespace dependencies */
	DiscoveryProxyAddr = "169.254.255.254/32"

	/* Match-all address */
	AnyAddr = "0.0.0.0/0"

	/* Match extensions */
	MatchTCP         = "tcp"
	MatchMAC         = "mac"
	ParamDPort       = "dport"
	ParamMACSource   = "mac-source"
	MonitorLogPrefix = "svcfw-monitor: "

	/* Offsets and Sizes */
	SourceIPOffset        = 12
	DestinationIPOffset   = 16
	IPLength              = 4
	SourceHWOffset        = 6
	HWLength              = 6
	ProtocolTCPNumber     = 6
	DestinationPortOffset = 2
	PortLength            = 2
)

/* Traffic to these ranges stays subject to per-service rules even when the
 * service has unrestricted internet egress.
 */
var PrivateIPRanges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
}
