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
package controller

import (
	"context"
	"time"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/firewall"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/metrics"
	"k8s.io/klog/v2"
)

const (
	/* small head start so the first pass runs right after boot */
	initialUpdateDelay = 2 * time.Second
	triggerQueueSize   = 1
)

/* Controller drives the orchestrator: one pass right after startup, one
 * pass per tick, plus on-demand passes through ForceUpdate.
 */
type Controller struct {
	orchestrator *firewall.Orchestrator
	interval     time.Duration
	trigger      chan struct{}
}

func NewController(orchestrator *firewall.Orchestrator, interval time.Duration) *Controller {
	return &Controller{
		orchestrator: orchestrator,
		interval:     interval,
		trigger:      make(chan struct{}, triggerQueueSize),
	}
}

/* RunOnce executes a single reconciliation pass and returns its error. */
func (c *Controller) RunOnce(ctx context.Context) error {
	_, err := c.runPass(ctx)
	return err
}

/* ForceUpdate requests an extra pass outside the periodic schedule. If a
 * request is already queued the trigger is dropped, the queued pass will
 * pick up the current state anyway.
 */
func (c *Controller) ForceUpdate() {
	select {
	case c.trigger <- struct{}{}:
		klog.V(5).Infof("ForceUpdate: pass queued. \n")
	default:
		klog.V(5).Infof("ForceUpdate: pass already queued, dropping trigger. \n")
	}
}

/* Run blocks until stopCh closes, reconciling on every tick. */
func (c *Controller) Run(ctx context.Context, stopCh <-chan struct{}) error {
	klog.Infof("Starting reconciliation loop (interval: %v)... \n", c.interval)

	select {
	case <-time.After(initialUpdateDelay):
		klog.V(4).Infof("Initial reconciliation pass... \n")
		if _, err := c.runPass(ctx); err != nil {
			klog.Errorf("Error on initial reconciliation pass: %v \n", err)
		}
	case <-stopCh:
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			klog.V(5).Infof("Periodic reconciliation pass... \n")
			if _, err := c.runPass(ctx); err != nil {
				klog.Errorf("Error on periodic reconciliation pass: %v \n", err)
			}
		case <-c.trigger:
			klog.V(5).Infof("Forced reconciliation pass... \n")
			if _, err := c.runPass(ctx); err != nil {
				klog.Errorf("Error on forced reconciliation pass: %v \n", err)
			}
			/* drain a tick that raced with the forced pass */
			select {
			case <-ticker.C:
				klog.V(6).Infof("Drained pending tick after forced pass. \n")
			default:
			}
		case <-stopCh:
			klog.Infof("Stopping reconciliation loop... \n")
			return nil
		}
	}
}

func (c *Controller) runPass(ctx context.Context) (*firewall.Result, error) {
	reg := metrics.Get()
	reg.PassesTotal.Inc()
	start := time.Now()

	result, err := c.orchestrator.GeneralUpdate(ctx)
	if err != nil {
		reg.ObservePass(start, 0, 0, 0, 0, err)
		return nil, err
	}

	reg.ObservePass(start, len(result.ServiceChains), len(result.Failures),
		len(result.CollectedChains), len(result.SkippedCollection), nil)
	return result, nil
}
