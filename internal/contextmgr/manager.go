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
package contextmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/log"
)

// charsPerToken is the fallback token-count approximation used only when
// the cl100k_base encoder fails to load: four characters of serialized
// transcript per token.
const charsPerToken = 4

var (
	tokenEncoder     *tiktoken.Tiktoken
	tokenEncoderOnce sync.Once
)

// encoder lazily loads the cl100k_base encoding (the GPT-4/Claude-
// compatible encoding tiktoken-go ships) once per process. If it fails
// to load, tokenEncoder stays nil and EstimateTokens falls back to the
// char-based approximation rather than erroring.
func encoder() *tiktoken.Tiktoken {
	tokenEncoderOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn("contextmgr: load tiktoken cl100k_base encoding, falling back to char-based estimate", zap.Error(err))
			return
		}
		tokenEncoder = tkm
	})
	return tokenEncoder
}

// Strategy selects how the Manager reacts to rising usage.
type Strategy string

const (
	StrategyThreshold Strategy = "threshold"
	StrategyPassive   Strategy = "passive"
)

// passiveWarnUsage is the usage_percent above which a Passive-strategy
// Manager warns (once) without compacting.
const passiveWarnUsage = 90.0

// View is the ContextView the spec names: a point-in-time read of the
// transcript's token footprint.
type View struct {
	TokenCount       int
	MaxTokens        int
	UsagePercent     float64
	TranscriptLength int
	StrategyName     Strategy
}

// Summarizer produces a single natural-language summary of a serialized
// transcript. The orchestrator supplies this, backed by a non-streaming
// call to the session's provider — the Context Manager has no provider
// dependency of its own.
type Summarizer func(ctx context.Context, serializedTranscript string) (string, error)

// Manager implements the Context Manager: token accounting plus the
// threshold/passive compaction strategies of spec §4.2.
type Manager struct {
	mu sync.Mutex

	strategy  Strategy
	threshold float64 // fraction, e.g. 0.8
	limits    Limits

	compacting   bool
	warnedOnce   bool
	summarize    Summarizer
	sessionID    string
}

// Config configures a new Manager.
type Config struct {
	Strategy   Strategy
	Threshold  float64 // fraction; ignored under StrategyPassive
	Limits     Limits
	Summarizer Summarizer
	SessionID  string
}

// New creates a Manager. An unrecognized Strategy falls back to
// StrategyThreshold with a warning, per spec §6's configuration-input
// fallback rules.
func New(cfg Config) *Manager {
	strategy := cfg.Strategy
	if strategy != StrategyThreshold && strategy != StrategyPassive {
		log.Warn("unknown context strategy, falling back to threshold",
			zap.String("session_id", cfg.SessionID), zap.String("configured", string(strategy)))
		strategy = StrategyThreshold
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.8
	}
	return &Manager{
		strategy:  strategy,
		threshold: threshold,
		limits:    cfg.Limits,
		summarize: cfg.Summarizer,
		sessionID: cfg.SessionID,
	}
}

// EstimateTokens counts the tokens a serialized transcript would occupy,
// using tiktoken-go's cl100k_base encoder (a close approximation for
// Claude models as well as GPT-4). Falls back to a char-based estimate
// if the encoder failed to load.
func EstimateTokens(serialized string) int {
	enc := encoder()
	if enc == nil {
		return len(serialized) / charsPerToken
	}
	return len(enc.Encode(serialized, nil, nil))
}

// View computes the current ContextView for a serialized transcript of
// transcriptLength items.
func (m *Manager) View(serializedTranscript string, transcriptLength int) View {
	tokens := EstimateTokens(serializedTranscript)
	max := m.limits.MaxContextTokens - m.limits.ReservedOutputTokens
	if max <= 0 {
		max = m.limits.MaxContextTokens
	}
	usage := 0.0
	if max > 0 {
		usage = float64(tokens) / float64(max) * 100
	}
	return View{
		TokenCount:       tokens,
		MaxTokens:        max,
		UsagePercent:     usage,
		TranscriptLength: transcriptLength,
		StrategyName:     m.strategy,
	}
}

// CompactionResult is returned by MaybeCompact and Compact.
type CompactionResult struct {
	OldTokenCount   int
	NewTokenCount   int
	ReductionPct    float64
	Strategy        Strategy
	Summary         string
}

// ShouldCompact reports whether view warrants invoking Compact under the
// Manager's configured strategy. It also applies the Passive strategy's
// once-only 90% warning as a side effect.
func (m *Manager) ShouldCompact(view View) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.strategy {
	case StrategyThreshold:
		if m.compacting {
			return false // at most one compaction concurrently
		}
		return view.UsagePercent > m.threshold*100
	case StrategyPassive:
		if view.UsagePercent > passiveWarnUsage && !m.warnedOnce {
			m.warnedOnce = true
			log.Warn("context usage exceeds 90%; compaction is passive, call manual_compact to reduce it",
				zap.String("session_id", m.sessionID), zap.Float64("usage_percent", view.UsagePercent))
		}
		return false
	default:
		return false
	}
}

// Compact runs the compaction procedure of spec §4.2 steps 1-2: summarize
// the transcript via summarize, then hand back a CompactionResult whose
// Summary the caller (the orchestrator) turns into the synthetic
// AssistantMessage and seed input. Compact does not itself touch the
// transcript or emit the context_compacted Transport frame — the
// orchestrator does both, since only it can serialize compaction against
// turn activity per spec's "no turn in flight" requirement.
func (m *Manager) Compact(ctx context.Context, serializedTranscript string, transcriptLength int) (CompactionResult, error) {
	if transcriptLength == 0 {
		return CompactionResult{}, fmt.Errorf("contextmgr: compaction is a no-op on an empty transcript")
	}

	m.mu.Lock()
	if m.compacting {
		m.mu.Unlock()
		return CompactionResult{}, fmt.Errorf("contextmgr: compaction already in progress")
	}
	m.compacting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.compacting = false
		m.warnedOnce = false
		m.mu.Unlock()
	}()

	oldView := m.View(serializedTranscript, transcriptLength)

	summary, err := m.summarize(ctx, serializedTranscript)
	if err != nil {
		return CompactionResult{}, fmt.Errorf("contextmgr: summarize transcript: %w", err)
	}

	synthetic := "Context Summary\n\n" + summary
	newView := m.View(synthetic, 1)

	reduction := 0.0
	if oldView.TokenCount > 0 {
		reduction = (1 - float64(newView.TokenCount)/float64(oldView.TokenCount)) * 100
	}

	return CompactionResult{
		OldTokenCount: oldView.TokenCount,
		NewTokenCount: newView.TokenCount,
		ReductionPct:  reduction,
		Strategy:      m.strategy,
		Summary:       synthetic,
	}, nil
}
