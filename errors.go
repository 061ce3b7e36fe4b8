// Copyright 2026 Agora Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agora

import "strings"

// ValidationError is a local precondition failure. It is resolved before
// any transaction is submitted and never reaches the network.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// EligibilityError is returned when an execute or finalize action is
// attempted while its eligibility rules are unmet. Reasons lists every
// failing rule.
type EligibilityError struct {
	Reasons []string
}

func (e *EligibilityError) Error() string {
	return "not eligible: " + strings.Join(e.Reasons, "; ")
}
