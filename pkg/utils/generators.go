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
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"k8s.io/klog/v2"
)

const (
	TruncatedHashChars = 10 /* Used for GenerateChainHash */
)

/* Generates a SHA256 Hash truncated to TruncatedHashChars hex characters.
 * This is the collision-avoidance suffix of every per-service chain name,
 * so it must stay deterministic across processes and runs.
 */
func GenerateChainHash(inputStr string) string {
	thisHash := sha256.Sum256([]byte(inputStr))
	hexHash := hex.EncodeToString(thisHash[:])
	return hexHash[:TruncatedHashChars]
}

/* Creates a random short ID for correlating log lines of one pass */
func GeneratePassID() string {
	/* Generates a random number between 0 and 999999 */
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		klog.Warningf("Failed to generate random int for pass ID, using fallback: %v", err)
		return "000000"
	}
	return fmt.Sprintf("%06d", n) /* Format with leading zeros to have 6 digits */
}
