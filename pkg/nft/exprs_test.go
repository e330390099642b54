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
package nft

import (
	"net"
	"testing"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"github.com/google/nftables/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCompileRuleExprsRejectAll(t *testing.T) {
	/* "0.0.0.0/0 -> 0.0.0.0/0" emits no address compares at all */
	rule := types.Rule{
		Protocol:    types.IPProto,
		Source:      types.AnyAddr,
		Destination: types.AnyAddr,
		Target:      types.Reject(),
	}

	exprs, err := CompileRuleExprs(rule)
	require.NoError(t, err)
	require.Len(t, exprs, 1)

	reject, ok := exprs[0].(*expr.Reject)
	require.True(t, ok)
	assert.Equal(t, uint32(unix.NFT_REJECT_ICMPX_UNREACH), reject.Type)
}

func TestCompileRuleExprsLogAll(t *testing.T) {
	rule := types.Rule{
		Protocol:    types.IPProto,
		Source:      types.AnyAddr,
		Destination: types.AnyAddr,
		Target:      types.Log(),
	}

	exprs, err := CompileRuleExprs(rule)
	require.NoError(t, err)
	require.Len(t, exprs, 1)

	logExpr, ok := exprs[0].(*expr.Log)
	require.True(t, ok)
	assert.Equal(t, []byte(types.MonitorLogPrefix), logExpr.Data)
}

func TestCompileRuleExprsNamespaceAccept(t *testing.T) {
	rule := types.Rule{
		Protocol:    types.TCPProto,
		Source:      types.AnyAddr,
		Destination: types.DiscoveryProxyAddr,
		Target:      types.Accept(),
		Matches: []types.Match{
			{Name: types.MatchTCP, Params: []types.MatchParam{{Key: types.ParamDPort, Value: "20273"}}},
		},
	}

	exprs, err := CompileRuleExprs(rule)
	require.NoError(t, err)
	/* meta l4proto + cmp, payload + bitwise + cmp for the destination,
	 * payload + cmp for the port, verdict
	 */
	require.Len(t, exprs, 8)

	meta, ok := exprs[0].(*expr.Meta)
	require.True(t, ok)
	assert.Equal(t, expr.MetaKeyL4PROTO, meta.Key)
	protoCmp, ok := exprs[1].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{unix.IPPROTO_TCP}, protoCmp.Data)

	dstPayload, ok := exprs[2].(*expr.Payload)
	require.True(t, ok)
	assert.Equal(t, expr.PayloadBaseNetworkHeader, dstPayload.Base)
	assert.Equal(t, uint32(types.DestinationIPOffset), dstPayload.Offset)
	dstCmp, ok := exprs[4].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte(net.IPv4(169, 254, 255, 254).To4()), dstCmp.Data)

	portPayload, ok := exprs[5].(*expr.Payload)
	require.True(t, ok)
	assert.Equal(t, expr.PayloadBaseTransportHeader, portPayload.Base)
	portCmp, ok := exprs[6].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{0x4f, 0x31}, portCmp.Data) /* 20273 big endian */

	verdict, ok := exprs[7].(*expr.Verdict)
	require.True(t, ok)
	assert.Equal(t, expr.VerdictAccept, verdict.Kind)
}

func TestCompileRuleExprsMACDispatch(t *testing.T) {
	rule := types.Rule{
		Protocol:    types.IPProto,
		Source:      types.AnyAddr,
		Destination: types.AnyAddr,
		Target:      types.JumpTo("SVCFW.web.0123456789"),
		Matches: []types.Match{
			{Name: types.MatchMAC, Params: []types.MatchParam{{Key: types.ParamMACSource, Value: "AA:BB:CC:DD:EE:01"}}},
		},
	}

	exprs, err := CompileRuleExprs(rule)
	require.NoError(t, err)
	require.Len(t, exprs, 3)

	payload, ok := exprs[0].(*expr.Payload)
	require.True(t, ok)
	assert.Equal(t, expr.PayloadBaseLLHeader, payload.Base)
	assert.Equal(t, uint32(types.SourceHWOffset), payload.Offset)
	assert.Equal(t, uint32(types.HWLength), payload.Len)

	cmp, ok := exprs[1].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, cmp.Data)

	verdict, ok := exprs[2].(*expr.Verdict)
	require.True(t, ok)
	assert.Equal(t, expr.VerdictJump, verdict.Kind)
	assert.Equal(t, "SVCFW.web.0123456789", verdict.Chain)
}

func TestCompileRuleExprsPrivateRangeReturn(t *testing.T) {
	rule := types.Rule{
		Protocol:    types.IPProto,
		Source:      types.AnyAddr,
		Destination: "172.16.0.0/12",
		Target:      types.Return(),
	}

	exprs, err := CompileRuleExprs(rule)
	require.NoError(t, err)
	require.Len(t, exprs, 4)

	_, ok := exprs[1].(*expr.Bitwise)
	require.True(t, ok)

	cmp, ok := exprs[2].(*expr.Cmp)
	require.True(t, ok)
	assert.Equal(t, []byte{172, 16, 0, 0}, cmp.Data)

	verdict, ok := exprs[3].(*expr.Verdict)
	require.True(t, ok)
	assert.Equal(t, expr.VerdictReturn, verdict.Kind)
}

func TestCompileRuleExprsErrors(t *testing.T) {
	tests := []struct {
		name string
		rule types.Rule
	}{
		{
			name: "Unsupported protocol",
			rule: types.Rule{Protocol: "udp", Source: types.AnyAddr, Destination: types.AnyAddr, Target: types.Accept()},
		},
		{
			name: "Malformed source",
			rule: types.Rule{Protocol: types.IPProto, Source: "not-a-cidr", Destination: types.AnyAddr, Target: types.Accept()},
		},
		{
			name: "IPv6 destination",
			rule: types.Rule{Protocol: types.IPProto, Source: types.AnyAddr, Destination: "fd00::/8", Target: types.Accept()},
		},
		{
			name: "Unsupported match extension",
			rule: types.Rule{Protocol: types.IPProto, Source: types.AnyAddr, Destination: types.AnyAddr, Target: types.Accept(),
				Matches: []types.Match{{Name: "conntrack"}}},
		},
		{
			name: "Bad tcp dport",
			rule: types.Rule{Protocol: types.TCPProto, Source: types.AnyAddr, Destination: types.AnyAddr, Target: types.Accept(),
				Matches: []types.Match{{Name: types.MatchTCP, Params: []types.MatchParam{{Key: types.ParamDPort, Value: "eighty"}}}}},
		},
		{
			name: "Bad mac-source",
			rule: types.Rule{Protocol: types.IPProto, Source: types.AnyAddr, Destination: types.AnyAddr, Target: types.Accept(),
				Matches: []types.Match{{Name: types.MatchMAC, Params: []types.MatchParam{{Key: types.ParamMACSource, Value: "zz:zz"}}}}},
		},
		{
			name: "Jump without chain",
			rule: types.Rule{Protocol: types.IPProto, Source: types.AnyAddr, Destination: types.AnyAddr, Target: types.Target{Kind: types.TargetJump}},
		},
		{
			name: "Unknown target kind",
			rule: types.Rule{Protocol: types.IPProto, Source: types.AnyAddr, Destination: types.AnyAddr, Target: types.Target{Kind: "masquerade"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exprs, err := CompileRuleExprs(tc.rule)
			assert.Error(t, err)
			assert.Nil(t, exprs)
		})
	}
}
