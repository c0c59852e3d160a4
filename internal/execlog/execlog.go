// Package execlog records the outcome of every attempted instruction of an
// automation run.
package execlog

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/v0xg/jobfill/internal/protocol"
)

// Status is the outcome of one instruction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is one immutable log record.
type Entry struct {
	Timestamp       time.Time          `json:"timestamp"`
	InstructionKind protocol.Kind      `json:"instruction_kind"`
	Selector        *protocol.Selector `json:"selector,omitempty"`
	Status          Status             `json:"status"`
	Error           string             `json:"error,omitempty"`
}

// Log is an append-only, concurrency-safe list of entries.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// New returns an empty log stamped with the wall clock.
func New() *Log {
	return &Log{now: time.Now}
}

// Success appends a successful outcome for ins.
func (l *Log) Success(ins protocol.Instruction) Entry {
	return l.add(ins, StatusSuccess, "")
}

// Failure appends a failed outcome for ins.
func (l *Log) Failure(ins protocol.Instruction, err error) Entry {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return l.add(ins, StatusError, msg)
}

func (l *Log) add(ins protocol.Instruction, status Status, msg string) Entry {
	var sel *protocol.Selector
	if ins.Selector != nil {
		copied := *ins.Selector
		sel = &copied
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	e := Entry{
		Timestamp:       now().UTC(),
		InstructionKind: ins.Kind(),
		Selector:        sel,
		Status:          status,
		Error:           msg,
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a snapshot of the log.
func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// MarshalJSON encodes the log as an array of entries.
func (l *Log) MarshalJSON() ([]byte, error) {
	entries := l.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

func (e Entry) clone() Entry {
	if e.Selector != nil {
		copied := *e.Selector
		e.Selector = &copied
	}
	return e
}
