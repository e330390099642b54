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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"
)

/* TargetKind is the closed set of rule dispositions. */
type TargetKind string

const (
	TargetAccept TargetKind = "accept"
	TargetReject TargetKind = "reject"
	TargetLog    TargetKind = "log"
	TargetReturn TargetKind = "return"
	TargetJump   TargetKind = "jump"
)

/* Target is a rule disposition. Chain is set only for TargetJump. */
type Target struct {
	Kind  TargetKind `json:"kind"`
	Chain string     `json:"chain,omitempty"`
}

func Accept() Target { return Target{Kind: TargetAccept} }

func Reject() Target { return Target{Kind: TargetReject} }

func Log() Target { return Target{Kind: TargetLog} }

func Return() Target { return Target{Kind: TargetReturn} }

func JumpTo(chain string) Target { return Target{Kind: TargetJump, Chain: chain} }

/* MatchParam is one key-value parameter of a match extension. Order matters. */
type MatchParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

/* Match is one match extension: a name plus its ordered parameter list. */
type Match struct {
	Name   string       `json:"name"`
	Params []MatchParam `json:"params"`
}

/* Rule is an immutable firewall rule value. Two rules are the same rule iff
 * every field compares equal; there is no identity beyond the value itself.
 */
type Rule struct {
	Protocol    string  `json:"protocol"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Target      Target  `json:"target"`
	Matches     []Match `json:"matches"`
}

/* CanonicalKey serializes the rule deterministically. It is the comparison
 * and hashing key for replace-with-exact-set and ensure-rule semantics.
 */
func (r Rule) CanonicalKey() string {
	raw, err := json.Marshal(r)
	if err != nil {
		/* Rule only holds strings and slices of strings; Marshal cannot fail
		 * on well-formed values. Log and fall back to the verbose format.
		 */
		klog.Errorf("Rule.CanonicalKey: json.Marshal failed: %v \n", err)
		return fmt.Sprintf("%#v", r)
	}
	return string(raw)
}

/* Hash returns a stable identifier for the rule, used in log lines. */
func (r Rule) Hash() string {
	sum := sha256.Sum256([]byte(r.CanonicalKey()))
	return hex.EncodeToString(sum[:])
}

func (r Rule) Equal(other Rule) bool {
	return r.CanonicalKey() == other.CanonicalKey()
}
