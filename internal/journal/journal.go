// Package journal keeps a local, hash chained JSONL record of every hosting
// session that ended on this machine.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/jsonutil"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

// FileName is the journal file inside the config directory.
const FileName = "sessions.jsonl"

// Journal appends records to a JSONL file with a hash chain. Appends from
// several processes are serialized by a lock file next to the journal.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a journal at path.
func New(path string) *Journal {
	return &Journal{path: path, now: time.Now}
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append chains rec onto the journal and returns it as written.
func (j *Journal) Append(rec model.JournalRecord) (model.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return rec, fmt.Errorf("create journal dir: %w", err)
	}
	fl := flock.New(j.path + ".lock")
	if err := fl.Lock(); err != nil {
		return rec, fmt.Errorf("lock journal: %w", err)
	}
	defer fl.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return rec, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	prev, err := lastHash(file)
	if err != nil {
		return rec, err
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = j.now().UTC()
	}
	rec.PrevHash = prev
	rec.RecordHash = ""
	hash, err := recordHash(rec)
	if err != nil {
		return rec, err
	}
	rec.RecordHash = hash

	line, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := file.Seek(0, 2); err != nil {
		return rec, fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return rec, fmt.Errorf("write journal record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return rec, fmt.Errorf("sync journal: %w", err)
	}
	return rec, nil
}

// RecordOutcome appends the terminal outcome of a session.
func (j *Journal) RecordOutcome(identity string, out *model.Outcome) (model.JournalRecord, error) {
	details := map[string]any{
		"state":     string(out.State),
		"autosaves": out.Autosaves,
	}
	if out.Degraded {
		details["degraded"] = true
	}
	if out.ManualUploadRequired {
		details["manual_upload_required"] = true
	}
	if out.ReleaseFailed {
		details["release_failed"] = true
	}
	if out.Address != "" {
		details["address"] = out.Address
	}
	if out.Holder != "" {
		details["holder"] = out.Holder
	}
	if out.Error != "" {
		details["error"] = out.Error
	}
	if len(out.Notes) > 0 {
		details["notes"] = out.Notes
	}
	return j.Append(model.JournalRecord{
		SessionID: out.SessionID,
		World:     out.World,
		Identity:  identity,
		Kind:      out.Kind,
		Summary:   out.Summary(),
		Details:   details,
	})
}

// List returns the last limit records, oldest first. limit <= 0 returns
// all of them. Malformed lines are skipped.
func (j *Journal) List(limit int) ([]model.JournalRecord, error) {
	records, _, err := j.read()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Verify walks the chain and reports the number of records checked. A
// malformed line, a wrong prev_hash or a wrong record_hash fails with
// ErrJournalChainBroken naming the line.
func (j *Journal) Verify() (int, error) {
	records, bad, err := j.read()
	if err != nil {
		return 0, err
	}
	if bad > 0 {
		return 0, errclass.ErrJournalChainBroken.WithMessagef("line %d is not a journal record", bad)
	}

	var prev model.HashValue
	for i, rec := range records {
		if rec.PrevHash != prev {
			return i, errclass.ErrJournalChainBroken.WithMessagef("line %d: prev_hash does not match line %d", i+1, i)
		}
		want := rec.RecordHash
		rec.RecordHash = ""
		got, err := recordHash(rec)
		if err != nil {
			return i, err
		}
		if got != want {
			return i, errclass.ErrJournalChainBroken.WithMessagef("line %d: record_hash mismatch", i+1)
		}
		prev = want
	}
	return len(records), nil
}

// read loads every record. bad is the 1-based number of the first line
// that did not parse, or 0.
func (j *Journal) read() (records []model.JournalRecord, bad int, err error) {
	file, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec model.JournalRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			if bad == 0 {
				bad = line
			}
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan journal: %w", err)
	}
	return records, bad, nil
}

func lastHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}
	var last model.HashValue
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec model.JournalRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		last = rec.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan journal: %w", err)
	}
	return last, nil
}

// recordHash hashes rec with RecordHash cleared by the caller.
func recordHash(rec model.JournalRecord) (model.HashValue, error) {
	h, err := jsonutil.CanonicalHash(rec)
	if err != nil {
		return "", fmt.Errorf("hash journal record: %w", err)
	}
	return model.HashValue(h), nil
}
