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
package kernel

import (
	"os"
	"strings"

	"k8s.io/klog/v2"
)

/* kernel modules we need for the ip family chains */
var requiredModules = []string{"nf_tables", "nft_log", "nft_reject"}

/* check if the nftables modules are loaded */
func CheckNftables() bool {
	klog.V(8).Infof("Opening /proc/modules... \n")
	data, err := os.ReadFile("/proc/modules")
	if err != nil {
		klog.Errorf("Error checking /proc/modules: %v \n", err)
		return false
	}

	loaded := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			loaded[fields[0]] = true
		}
	}

	klog.V(8).Infof("Matching modules on /proc/modules... \n")
	for _, mod := range requiredModules {
		klog.V(8).Infof("Matching module %s on /proc/modules... \n", mod)
		if !loaded[mod] {
			klog.Errorf("No %s module found on kernel. \n", mod)
			klog.Errorf("Make sure these modules are loaded: %v \n", requiredModules)
			return false
		}
		klog.V(8).Infof("Module %s found on /proc/modules... \n", mod)
	}
	klog.V(8).Infof("Finished matching all modules on /proc/modules...\n")
	return true
}
