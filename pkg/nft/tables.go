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
	"sync"
	"time"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/types"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"k8s.io/klog/v2"
)

const (
	maxFlushRetries = 5
	flushRetryDelay = 300 * time.Millisecond
)

/* NFTables programs the kernel packet filter through one lasting netlink
 * connection. All mutations of one logical operation go into a single
 * conn batch, so each Ensure/Delete is atomic from the caller's view.
 */
type NFTables struct {
	conn     *nftables.Conn
	table    *nftables.Table
	connLock sync.Mutex
}

func NewNftTables() *NFTables {
	return &NFTables{}
}

func (nft *NFTables) Init() error {
	nftconn, err := nftables.New(nftables.AsLasting())
	if err != nil {
		return fmt.Errorf("nftables.New() failed: %w", err)
	}
	nft.conn = nftconn
	nft.table = &nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   types.TableFilter,
	}
	return nil
}

func (nft *NFTables) lockConnection() {
	klog.V(7).Info("Attempting to acquire NFTables connection lock...")
	nft.connLock.Lock()
	klog.V(6).Info("NFTables connection lock acquired.")
}

func (nft *NFTables) unlockConnection() {
	nft.connLock.Unlock()
	klog.V(6).Info("NFTables connection lock released.")
}

/* flushWithRetry flushes the pending conn batch, retrying transient kernel
 * conditions with backoff. Assumes the connection lock is held.
 */
func (nft *NFTables) flushWithRetry(opID, operationDescription string) error {
	retryDelay := flushRetryDelay
	var lastFlushErr error

	logEntryPrefix := fmt.Sprintf("[Flush, ID: %s, OpDesc: %s]", opID, operationDescription)

	for attempt := 1; attempt <= maxFlushRetries; attempt++ {
		klog.V(5).Infof("%s Attempting to flush (Attempt %d/%d).", logEntryPrefix, attempt, maxFlushRetries)
		flushStartTime := time.Now()
		lastFlushErr = nft.conn.Flush()
		flushDuration := time.Since(flushStartTime)

		if lastFlushErr == nil {
			klog.V(4).Infof("%s Flushed successfully (Attempt %d, Duration: %s).", logEntryPrefix, attempt, flushDuration)
			return nil
		}

		klog.Errorf("%s Flush FAILED (Attempt %d/%d, Duration: %s): %v.", logEntryPrefix, attempt, maxFlushRetries, flushDuration, lastFlushErr)

		isRetryableError := utils.IsNftDeviceOrResourceBusyError(lastFlushErr) ||
			utils.IsNftNoSuchFileError(lastFlushErr)

		if attempt < maxFlushRetries && isRetryableError {
			klog.Warningf("%s Retrying flush for '%s' due to '%v' in %v...", logEntryPrefix, operationDescription, lastFlushErr, retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2
			continue
		}
		return lastFlushErr
	}
	return lastFlushErr
}

/* EnsureBaseLayout makes the table and the two hooked entry chains exist.
 * The entry chains keep accept policy: the only enforcement is what the
 * dispatch chain routes into per-service chains.
 */
func (nft *NFTables) EnsureBaseLayout() error {
	nft.lockConnection()
	defer nft.unlockConnection()

	opID := utils.GeneratePassID()
	klog.V(2).Infof("[EnsureBaseLayout, ID: %s] Ensuring table '%s' and entry chains (operations added to conn batch).", opID, types.TableFilter)

	nft.conn.AddTable(nft.table)

	policyAccept := nftables.ChainPolicyAccept
	inputPriority := *nftables.ChainPriorityFilter
	forwardPriority := *nftables.ChainPriorityFilter

	nft.conn.AddChain(&nftables.Chain{
		Name:     types.InputChain,
		Table:    nft.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookInput,
		Priority: &inputPriority,
		Policy:   &policyAccept,
	})
	nft.conn.AddChain(&nftables.Chain{
		Name:     types.ForwardChain,
		Table:    nft.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookForward,
		Priority: &forwardPriority,
		Policy:   &policyAccept,
	})

	if err := nft.flushWithRetry(opID, "ensure base layout"); err != nil {
		return fmt.Errorf("ensuring base layout: %w", err)
	}
	klog.V(2).Infof("[EnsureBaseLayout, ID: %s] Base layout in place.", opID)
	return nil
}

/* findChain looks up a chain of our table by name on the live connection. */
func (nft *NFTables) findChain(name string) (*nftables.Chain, error) {
	chains, err := nft.conn.ListChainsOfTableFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return nil, fmt.Errorf("nft.conn.ListChainsOfTableFamily() failed: %w", err)
	}
	for _, ch := range chains {
		if ch.Table != nil && ch.Table.Name == types.TableFilter && ch.Name == name {
			return ch, nil
		}
	}
	return nil, nil
}

/* EnsureChain makes the named chain exist with exactly the given ordered
 * rule set. Create, flush and re-add go into one batch, so readers never
 * observe a partially filled chain.
 */
func (nft *NFTables) EnsureChain(name string, rules []types.Rule) error {
	nft.lockConnection()
	defer nft.unlockConnection()

	opID := utils.GeneratePassID()
	klog.V(4).Infof("[EnsureChain, ID: %s] Ensuring chain %s with %d rules.", opID, name, len(rules))

	/* Compile everything before touching the batch: a bad rule must not
	 * leave the chain half replaced.
	 */
	ruleExprs := make([][]expr.Any, 0, len(rules))
	for i := range rules {
		exprs, err := CompileRuleExprs(rules[i])
		if err != nil {
			return fmt.Errorf("compiling rule %d for chain %s: %w", i, name, err)
		}
		ruleExprs = append(ruleExprs, exprs)
	}

	chainObj := &nftables.Chain{
		Name:  name,
		Table: nft.table,
		Type:  nftables.ChainTypeFilter,
	}

	nft.conn.AddChain(chainObj)
	nft.conn.FlushChain(chainObj)
	for i := range ruleExprs {
		nft.conn.AddRule(&nftables.Rule{
			Table: nft.table,
			Chain: chainObj,
			Exprs: ruleExprs[i],
		})
	}

	if err := nft.flushWithRetry(opID, fmt.Sprintf("ensure chain %s", name)); err != nil {
		return fmt.Errorf("ensuring chain %s: %w", name, err)
	}
	klog.V(5).Infof("[EnsureChain, ID: %s] Chain %s now holds %d rules.", opID, name, len(rules))
	return nil
}

/* EnsureRule makes sure exactly one occurrence of the rule exists in a
 * pre-existing chain, leaving whatever else the chain carries alone.
 */
func (nft *NFTables) EnsureRule(chainName string, rule types.Rule) error {
	nft.lockConnection()
	defer nft.unlockConnection()

	desiredExprs, err := CompileRuleExprs(rule)
	if err != nil {
		return fmt.Errorf("compiling rule for chain %s: %w", chainName, err)
	}

	chainObj, err := nft.findChain(chainName)
	if err != nil {
		return err
	}
	if chainObj == nil {
		return fmt.Errorf("chain %s does not exist", chainName)
	}

	existingRules, err := nft.conn.GetRules(nft.table, chainObj)
	if err != nil {
		return fmt.Errorf("nft.conn.GetRules() for chain %s failed: %w", chainName, err)
	}

	desiredSignature := utils.NormalizeExprsForComparison(desiredExprs)
	for _, existingRule := range existingRules {
		if utils.NormalizeExprsForComparison(existingRule.Exprs) == desiredSignature {
			klog.V(5).Infof("[EnsureRule] Identical rule already exists in chain %s (Handle: %d). Skipping AddRule.", chainName, existingRule.Handle)
			return nil
		}
	}

	opID := utils.GeneratePassID()
	nft.conn.AddRule(&nftables.Rule{
		Table: nft.table,
		Chain: chainObj,
		Exprs: desiredExprs,
	})
	if err := nft.flushWithRetry(opID, fmt.Sprintf("ensure rule in %s", chainName)); err != nil {
		return fmt.Errorf("ensuring rule in chain %s: %w", chainName, err)
	}
	klog.V(4).Infof("[EnsureRule, ID: %s] Added rule %s to chain %s.", opID, rule.Hash()[:12], chainName)
	return nil
}

/* AllChains enumerates the names of every chain in our table. */
func (nft *NFTables) AllChains() ([]string, error) {
	nft.lockConnection()
	defer nft.unlockConnection()

	chains, err := nft.conn.ListChainsOfTableFamily(nftables.TableFamilyIPv4)
	if err != nil {
		return nil, fmt.Errorf("nft.conn.ListChainsOfTableFamily() failed: %w", err)
	}

	var names []string
	for _, ch := range chains {
		if ch.Table != nil && ch.Table.Name == types.TableFilter {
			names = append(names, ch.Name)
		}
	}
	klog.V(6).Infof("[AllChains] Found %d chains in table %s.", len(names), types.TableFilter)
	return names, nil
}

/* DeleteChain removes a chain. The kernel refuses (EBUSY) while another
 * chain still jumps into it; the error is returned for the caller to
 * report and retry on a later pass.
 */
func (nft *NFTables) DeleteChain(name string) error {
	nft.lockConnection()
	defer nft.unlockConnection()

	chainObj, err := nft.findChain(name)
	if err != nil {
		return err
	}
	if chainObj == nil {
		klog.V(4).Infof("[DeleteChain] Chain %s already absent.", name)
		return nil
	}

	nft.conn.FlushChain(chainObj)
	nft.conn.DelChain(chainObj)
	if err := nft.conn.Flush(); err != nil {
		if utils.IsNftChainInUseError(err) {
			return fmt.Errorf("chain %s is still referenced: %w", name, err)
		}
		return fmt.Errorf("deleting chain %s: %w", name, err)
	}
	klog.V(4).Infof("[DeleteChain] Deleted chain %s.", name)
	return nil
}
