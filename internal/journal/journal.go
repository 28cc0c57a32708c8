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

// Package journal implements the durable, append-only per-session event
// log that backs session resumption: every inbound and outbound frame is
// recorded as one JSON line before it is acted on, so a crashed session
// can be replayed back to its last known state.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/log"
	"github.com/weaveloop/weave/internal/version"
)

// Direction is which way a JournalEvent crossed the Transport boundary.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// EventType distinguishes ordinary frame traffic from the connection
// pseudo-events synthesized around it.
type EventType string

const (
	EventReceived         EventType = "websocket_message_received"
	EventSent             EventType = "websocket_message_sent"
	EventSessionConnected EventType = "session_connected"
	EventSessionEnded     EventType = "session_ended"
)

// Event is one line of a session's journal.
type Event struct {
	Timestamp   time.Time       `json:"timestamp"`
	EventType   EventType       `json:"event_type"`
	Direction   Direction       `json:"direction,omitempty"`
	MessageData json.RawMessage `json:"message_data,omitempty"`
	// Schema is stamped on EventSessionConnected only, recording the
	// JournalSchema of the binary that started the session. Replay returns
	// it unchecked; internal/transport's replayTranscript uses it to refuse
	// resuming a journal written by an incompatible schema.
	Schema string `json:"schema,omitempty"`
}

// Journal appends Events for one session to a JSONL file on disk and lets
// them be replayed back in order. It is safe for concurrent use.
type Journal struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// Open creates or reopens the journal file for sessionID under dir,
// appending to whatever is already there — a fresh process resuming a
// session picks up its journal exactly where the last one left off.
func Open(dir, sessionID string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	path := filePath(dir, sessionID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Journal{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

func filePath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".jsonl")
}

// Append records one Event, flushing immediately: a journal line is only
// useful if it survives the process that wrote it.
func (j *Journal) Append(evt Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("journal: marshal event: %w", err)
	}
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("journal: write event: %w", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("journal: write newline: %w", err)
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	return j.file.Sync()
}

// RecordConnected appends the session_connected pseudo-event, stamped with
// the running binary's JournalSchema.
func (j *Journal) RecordConnected() error {
	return j.Append(Event{EventType: EventSessionConnected, Schema: version.JournalSchema})
}

// RecordEnded appends the session_ended pseudo-event.
func (j *Journal) RecordEnded() error {
	return j.Append(Event{EventType: EventSessionEnded})
}

// RecordReceived journals an inbound Transport frame before it is acted
// on, so replay can reconstruct exactly what the orchestrator saw.
func (j *Journal) RecordReceived(payload any) error {
	return j.recordFrame(EventReceived, DirectionIncoming, payload)
}

// RecordSent journals an outbound Transport frame before it is published.
func (j *Journal) RecordSent(payload any) error {
	return j.recordFrame(EventSent, DirectionOutgoing, payload)
}

func (j *Journal) recordFrame(eventType EventType, dir Direction, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal: marshal message_data: %w", err)
	}
	return j.Append(Event{EventType: eventType, Direction: dir, MessageData: raw})
}

// Close flushes and closes the underlying file. It does not delete or
// archive it — Archive does that explicitly, on session deletion.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("journal: flush on close: %w", err)
	}
	return j.file.Close()
}

// Replay reads every Event back from sessionID's journal file under dir,
// in append order. It is used to rebuild a session's transcript on
// resumption; it does not require the journal to currently be Open.
func Replay(dir, sessionID string) ([]Event, error) {
	path := filePath(dir, sessionID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open %s for replay: %w", path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("journal: decode line: %w", err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan %s: %w", path, err)
	}
	return events, nil
}

// Archive renames a deleted session's journal out of the active set,
// following the archive-on-delete convention: a dot-prefixed file
// carrying the session ID and the deletion time, kept around for
// forensics rather than erased outright.
func Archive(dir, sessionID string) error {
	src := filePath(dir, sessionID)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(dir, fmt.Sprintf(".%s-%d.jsonl", sessionID, time.Now().Unix()))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("journal: archive %s: %w", sessionID, err)
	}
	log.Info("archived session journal", zap.String("session_id", sessionID), zap.String("archived_path", dst))
	return nil
}

// Sweeper periodically erases archived journals (the dot-prefixed
// `.{id}-{ts}.jsonl` files Archive leaves behind) once they are older than
// a retention window, so forensic copies don't accumulate forever.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
}

// NewSweeper builds a Sweeper that purges archives under dir older than
// maxAge. It does not start running until Start is called.
func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{dir: dir, maxAge: maxAge, cron: cron.New()}
}

// Start schedules the sweep on the given cron spec (e.g. "0 3 * * *" for
// daily at 03:00) and runs it immediately once before the schedule takes
// over, so a freshly started process doesn't wait a full period before its
// first sweep.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("journal: schedule sweeper: %w", err)
	}
	s.sweep()
	s.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Warn("journal: sweep readdir", zap.String("dir", s.dir), zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			log.Warn("journal: sweep remove", zap.String("path", path), zap.Error(err))
			continue
		}
		log.Info("journal: swept archived journal", zap.String("path", path))
	}
}
