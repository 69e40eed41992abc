package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

const StatusPending = "pending"

// Entry is the last known outcome for one product URL.
type Entry struct {
	URL       string    `json:"url"`
	Status    string    `json:"status"` // pending, accepted, rejected, failed
	Message   string    `json:"message,omitempty"`
	Attempts  int       `json:"attempts"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journal is a JSON file that records what happened to every URL of a run.
// Every change is flushed to disk.
type Journal struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	filename string
	now      func() time.Time
}

func NewJournal(filename string) (*Journal, error) {
	j := &Journal{
		entries:  make(map[string]*Entry),
		filename: filename,
		now:      time.Now,
	}

	if err := j.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return j, nil
}

// AddPending registers urls that are not yet known. Known URLs keep their
// status.
func (j *Journal) AddPending(urls []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, exists := j.entries[u]; exists {
			continue
		}
		j.entries[u] = &Entry{
			URL:       u,
			Status:    StatusPending,
			AddedAt:   now,
			UpdatedAt: now,
		}
	}

	return j.save()
}

func (j *Journal) Get(url string) (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	e, exists := j.entries[url]
	if !exists {
		return Entry{}, false
	}
	return *e, true
}

// Pending returns the URLs still waiting to be processed, oldest first.
func (j *Journal) Pending() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var pending []*Entry
	for _, e := range j.entries {
		if e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(a, b int) bool {
		if pending[a].AddedAt.Equal(pending[b].AddedAt) {
			return pending[a].URL < pending[b].URL
		}
		return pending[a].AddedAt.Before(pending[b].AddedAt)
	})

	urls := make([]string, len(pending))
	for i, e := range pending {
		urls[i] = e.URL
	}
	return urls
}

// UpdateStatus records an outcome for url, adding the entry if needed.
func (j *Journal) UpdateStatus(url, status, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if url == "" {
		return fmt.Errorf("url is required")
	}

	now := j.now()
	e, exists := j.entries[url]
	if !exists {
		e = &Entry{URL: url, AddedAt: now}
		j.entries[url] = e
	}

	e.Status = status
	e.Message = message
	e.Attempts++
	e.UpdatedAt = now

	return j.save()
}

func (j *Journal) Stats() map[string]int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stats := make(map[string]int)
	for _, e := range j.entries {
		stats[e.Status]++
	}
	stats["total"] = len(j.entries)
	return stats
}

func (j *Journal) save() error {
	data, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := j.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, j.filename)
}

func (j *Journal) Load() error {
	data, err := os.ReadFile(j.filename)
	if err != nil {
		return err
	}

	entries := make(map[string]*Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse journal %s: %w", j.filename, err)
	}

	j.mu.Lock()
	j.entries = entries
	j.mu.Unlock()
	return nil
}
