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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetConstructors(t *testing.T) {
	assert.Equal(t, Target{Kind: TargetAccept}, Accept())
	assert.Equal(t, Target{Kind: TargetReject}, Reject())
	assert.Equal(t, Target{Kind: TargetLog}, Log())
	assert.Equal(t, Target{Kind: TargetReturn}, Return())
	assert.Equal(t, Target{Kind: TargetJump, Chain: "SVCFW-INTERNET"}, JumpTo("SVCFW-INTERNET"))
}

func TestRuleCanonicalKeyIsStable(t *testing.T) {
	rule := Rule{
		Protocol:    TCPProto,
		Source:      AnyAddr,
		Destination: DiscoveryProxyAddr,
		Target:      Accept(),
		Matches: []Match{
			{Name: MatchTCP, Params: []MatchParam{{Key: ParamDPort, Value: "20273"}}},
		},
	}
	first := rule.CanonicalKey()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, rule.CanonicalKey())
	}
	assert.Equal(t, first, Rule{
		Protocol:    TCPProto,
		Source:      AnyAddr,
		Destination: DiscoveryProxyAddr,
		Target:      Accept(),
		Matches: []Match{
			{Name: MatchTCP, Params: []MatchParam{{Key: ParamDPort, Value: "20273"}}},
		},
	}.CanonicalKey())
}

func TestRuleEqual(t *testing.T) {
	base := Rule{Protocol: IPProto, Source: AnyAddr, Destination: AnyAddr, Target: Reject()}

	tests := []struct {
		name     string
		other    Rule
		expected bool
	}{
		{
			name:     "Identical rule",
			other:    Rule{Protocol: IPProto, Source: AnyAddr, Destination: AnyAddr, Target: Reject()},
			expected: true,
		},
		{
			name:     "Different target",
			other:    Rule{Protocol: IPProto, Source: AnyAddr, Destination: AnyAddr, Target: Log()},
			expected: false,
		},
		{
			name:     "Different destination",
			other:    Rule{Protocol: IPProto, Source: AnyAddr, Destination: "10.0.0.0/8", Target: Reject()},
			expected: false,
		},
		{
			name: "Extra match extension",
			other: Rule{Protocol: IPProto, Source: AnyAddr, Destination: AnyAddr, Target: Reject(),
				Matches: []Match{{Name: MatchMAC, Params: []MatchParam{{Key: ParamMACSource, Value: "00:11:22:33:44:55"}}}}},
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, base.Equal(tc.other))
			assert.Equal(t, tc.expected, tc.other.Equal(base))
		})
	}
}

func TestRuleMatchParamOrderIsSignificant(t *testing.T) {
	ruleA := Rule{
		Protocol: TCPProto, Source: AnyAddr, Destination: AnyAddr, Target: Accept(),
		Matches: []Match{{Name: MatchTCP, Params: []MatchParam{{Key: ParamDPort, Value: "80"}, {Key: ParamDPort, Value: "443"}}}},
	}
	ruleB := Rule{
		Protocol: TCPProto, Source: AnyAddr, Destination: AnyAddr, Target: Accept(),
		Matches: []Match{{Name: MatchTCP, Params: []MatchParam{{Key: ParamDPort, Value: "443"}, {Key: ParamDPort, Value: "80"}}}},
	}
	assert.False(t, ruleA.Equal(ruleB))
}

func TestRuleHash(t *testing.T) {
	rule := Rule{Protocol: IPProto, Source: AnyAddr, Destination: AnyAddr, Target: Reject()}
	hash := rule.Hash()
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, rule.Hash())

	other := Rule{Protocol: IPProto, Source: AnyAddr, Destination: AnyAddr, Target: Log()}
	assert.NotEqual(t, hash, other.Hash())
}
