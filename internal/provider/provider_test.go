// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeProvider is a minimal Provider used elsewhere (orchestrator tests)
// to stand in for a real adapter; this file just asserts the event/kind
// zero values behave as expected so callers can rely on a blank
// StreamEvent meaning "no payload of this kind".
func TestStreamEvent_ZeroValueHasNoKind(t *testing.T) {
	var evt StreamEvent
	assert.Empty(t, evt.Kind)
	assert.Empty(t, evt.Delta)
	assert.Nil(t, evt.Err)
}

func TestUsage_ZeroValueIsZero(t *testing.T) {
	var u Usage
	assert.Zero(t, u.InputTokens)
	assert.Zero(t, u.OutputTokens)
}
