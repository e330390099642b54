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
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feitnomore/svcfw-nft-bridge/pkg/config"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/controller"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/discovery"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/firewall"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/kernel"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/metrics"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/nft"
	"github.com/feitnomore/svcfw-nft-bridge/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

/* Our version */
var version = "dev"

/* Our nftables utility */
var thisNft = nft.NewNftTables()

/* Command line flags */
var (
	configRoot  string
	interval    time.Duration
	runOnce     bool
	metricsAddr string
)

/* Cobra Root Command */
var rootCmd = &cobra.Command{
	Use:     "svcfw-nft-bridge",
	Version: version,
	Short:   "Per-service Firewall Controller",
	Long:    "svcfw-nft-bridge - Per-service outbound firewall controller for nftables.",
	Run: func(_ *cobra.Command, args []string) {
		/* Make sure klog use the values got by Crobra/pflag */
		klog.OsExit = func(exitCode int) {
			klog.Errorf("klog.OsExit called with code %d, panicking to allow flush", exitCode)
			panic(fmt.Sprintf("klog.OsExit called with code %d", exitCode))
		}
		/* Force log to stderr */
		klog.LogToStderr(true)

		if err := thisNft.EnsureBaseLayout(); err != nil {
			klog.Errorf("thisNft.EnsureBaseLayout() failed: %v \n", err)
			os.Exit(1)
		}

		store := config.NewStore(configRoot)
		discoverer := discovery.NewLinkDiscoverer()
		orchestrator := firewall.NewOrchestrator(thisNft, discoverer, store, configRoot)
		ctrl := controller.NewController(orchestrator, interval)

		ctx := context.Background()

		if runOnce {
			klog.V(2).Infof("Running a single reconciliation pass... \n")
			if err := ctrl.RunOnce(ctx); err != nil {
				klog.Errorf("Reconciliation pass failed: %v \n", err)
				os.Exit(1)
			}
			return
		}

		if metricsAddr != "" {
			go func() {
				if err := metrics.Serve(metricsAddr); err != nil {
					klog.Errorf("Metrics listener failed: %v \n", err)
				}
			}()
		}

		stopCh := make(chan struct{})

		klog.V(8).Infof("starting controller: ctrl.Run() \n")
		go func() {
			if err := ctrl.Run(ctx, stopCh); err != nil {
				klog.Errorf("ctrl.Run() failed: %v \n", err)
				os.Exit(1)
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		klog.Infof("Waiting for shutdown signal...")
		<-sigChan
		klog.Infof("Shutdown signal received, exiting...\n")
		close(stopCh)

		_ = args
	},
}

//nolint:gochecknoinits
func init() {
	defer klog.Flush()

	/* Create pflag.FlagSet for klog flags */
	klogFlags := pflag.NewFlagSet("klog", pflag.ContinueOnError)

	/* Initialize klog flags using a temporary *flag.FlagSet */
	goFlags := flag.NewFlagSet("go-flags-for-klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)

	/* Add values from *flag.FlagSet to Cobra's *pflag.FlagSet */
	goFlags.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		klogFlags.AddFlag(pf)
	})

	/* Add flags to our rootCmd */
	rootCmd.PersistentFlags().AddFlagSet(klogFlags)

	if lf := rootCmd.PersistentFlags().Lookup("logtostderr"); lf != nil {
		lf.DefValue = "true"
		lf.NoOptDefVal = "true"

		if err := rootCmd.PersistentFlags().Set("logtostderr", "true"); err != nil {
			klog.Warningf("Failed to set logtostderr via pflag in init: %v", err)
		}
	} else {
		klog.Warning("klog flag 'logtostderr' not found in PersistentFlags during init.")
	}

	rootCmd.PersistentFlags().StringVar(&configRoot, "config-root", "/etc/svcfw", "Root directory of service policy configuration")
	rootCmd.PersistentFlags().DurationVar(&interval, "interval", 30*time.Second, "Interval between reconciliation passes")
	rootCmd.PersistentFlags().BoolVar(&runOnce, "once", false, "Run a single reconciliation pass and exit")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the Prometheus metrics listener (empty disables it)")
}

/* This is our controller starting point */
func main() {
	utils.DisplayBanner(version)

	if !kernel.CheckNftables() {
		klog.Errorf("Error matching nftables kernel modules...\n")
		klog.Flush()
		os.Exit(1)
	}

	if err := thisNft.Init(); err != nil {
		klog.Errorf("thisNft.Init() failed: %v \n", err)
		klog.Flush()
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing root command: %v\n", err)
		klog.Fatalf("Error executing root command: %v \n", err)
	}
}
