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
	"fmt"
	"net"
	"strconv"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

/* CompileRuleExprs lowers one Rule value into the nftables expression list
 * that implements it. The Rule model is closed: an unknown protocol, match
 * extension, or target kind is a defect in the compiler that produced the
 * rule, and surfaces as an error here rather than a silently wrong rule.
 */
func CompileRuleExprs(rule types.Rule) ([]expr.Any, error) {
	var exprs []expr.Any

	switch rule.Protocol {
	case types.IPProto:
		/* The table is ip-family; every packet already is IP. */
	case types.TCPProto:
		exprs = append(exprs, buildExprCheckProtoTCP()...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", rule.Protocol)
	}

	srcExprs, err := buildExprCIDR(rule.Source, types.SourceIPOffset)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", rule.Source, err)
	}
	exprs = append(exprs, srcExprs...)

	dstExprs, err := buildExprCIDR(rule.Destination, types.DestinationIPOffset)
	if err != nil {
		return nil, fmt.Errorf("destination %q: %w", rule.Destination, err)
	}
	exprs = append(exprs, dstExprs...)

	for _, match := range rule.Matches {
		matchExprs, err := buildExprMatch(match)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, matchExprs...)
	}

	targetExprs, err := buildExprTarget(rule.Target)
	if err != nil {
		return nil, err
	}
	return append(exprs, targetExprs...), nil
}

func buildExprCheckProtoTCP() []expr.Any {
	return []expr.Any{
		&expr.Meta{
			Key:            expr.MetaKeyL4PROTO, /* L4 PROTOCOL */
			SourceRegister: false,
			Register:       1,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte{unix.IPPROTO_TCP},
		},
	}
}

/* buildExprCIDR emits a masked compare of the IPv4 address at the given
 * network-header offset. A zero-prefix CIDR matches everything and emits
 * nothing.
 */
func buildExprCIDR(cidr string, offset uint32) ([]expr.Any, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("parsing CIDR: %w", err)
	}
	ipv4 := ip.To4()
	if ipv4 == nil {
		return nil, fmt.Errorf("not an IPv4 CIDR")
	}
	if ones, _ := ipNet.Mask.Size(); ones == 0 {
		return nil, nil
	}

	return []expr.Any{
		&expr.Payload{
			OperationType:  expr.PayloadLoad,
			DestRegister:   1,
			SourceRegister: 0,
			Base:           expr.PayloadBaseNetworkHeader,
			Offset:         offset,
			Len:            types.IPLength,
		},
		&expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            types.IPLength,
			Mask:           ipNet.Mask,
			Xor:            make([]byte, types.IPLength),
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     ipv4.Mask(ipNet.Mask),
		},
	}, nil
}

func buildExprMatch(match types.Match) ([]expr.Any, error) {
	switch match.Name {
	case types.MatchTCP:
		return buildExprTCPMatch(match.Params)
	case types.MatchMAC:
		return buildExprMACMatch(match.Params)
	default:
		return nil, fmt.Errorf("unsupported match extension %q", match.Name)
	}
}

func buildExprTCPMatch(params []types.MatchParam) ([]expr.Any, error) {
	var exprs []expr.Any
	for _, param := range params {
		if param.Key != types.ParamDPort {
			return nil, fmt.Errorf("unsupported tcp match parameter %q", param.Key)
		}
		port, err := strconv.ParseUint(param.Value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid tcp dport %q: %w", param.Value, err)
		}
		exprs = append(exprs,
			&expr.Payload{
				OperationType:  expr.PayloadLoad,
				DestRegister:   1,
				SourceRegister: 0,
				Base:           expr.PayloadBaseTransportHeader,
				Offset:         types.DestinationPortOffset, /* DESTINATION PORT */
				Len:            types.PortLength,
			},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     binaryutil.BigEndian.PutUint16(uint16(port)),
			},
		)
	}
	return exprs, nil
}

func buildExprMACMatch(params []types.MatchParam) ([]expr.Any, error) {
	var exprs []expr.Any
	for _, param := range params {
		if param.Key != types.ParamMACSource {
			return nil, fmt.Errorf("unsupported mac match parameter %q", param.Key)
		}
		mac, err := utils.ParseMAC(param.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid mac-source %q: %w", param.Value, err)
		}
		exprs = append(exprs,
			&expr.Payload{
				OperationType:  expr.PayloadLoad,
				DestRegister:   1,
				SourceRegister: 0,
				Base:           expr.PayloadBaseLLHeader,
				Offset:         types.SourceHWOffset, /* Source HW */
				Len:            types.HWLength,
			},
			&expr.Cmp{
				Op:       expr.CmpOpEq,
				Register: 1,
				Data:     mac,
			},
		)
	}
	return exprs, nil
}

func buildExprTarget(target types.Target) ([]expr.Any, error) {
	switch target.Kind {
	case types.TargetAccept:
		return []expr.Any{&expr.Verdict{Kind: expr.VerdictAccept}}, nil
	case types.TargetReturn:
		return []expr.Any{&expr.Verdict{Kind: expr.VerdictReturn}}, nil
	case types.TargetJump:
		if target.Chain == "" {
			return nil, fmt.Errorf("jump target without a chain")
		}
		return []expr.Any{&expr.Verdict{Kind: expr.VerdictJump, Chain: target.Chain}}, nil
	case types.TargetReject:
		return []expr.Any{
			&expr.Reject{
				Type: unix.NFT_REJECT_ICMPX_UNREACH,
				Code: 1, /* port-unreachable */
			},
		}, nil
	case types.TargetLog:
		return []expr.Any{
			&expr.Log{
				Key:  1 << unix.NFTA_LOG_PREFIX,
				Data: []byte(types.MonitorLogPrefix),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported target kind %q", target.Kind)
	}
}
