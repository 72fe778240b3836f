package submission

import (
	"context"
	"sync"

	"github.com/datafield/courier/hook"
)

// Memory is an in-memory Store for unit testing and examples.
type Memory struct {
	mu   sync.RWMutex
	json map[int64]map[string]any
	xml  map[int64][]byte
}

// NewMemory creates an empty in-memory submission store.
func NewMemory() *Memory {
	return &Memory{
		json: make(map[int64]map[string]any),
		xml:  make(map[int64][]byte),
	}
}

// PutJSON stores JSON content for a submission ID.
func (m *Memory) PutJSON(submissionID int64, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.json[submissionID] = data
}

// PutXML stores XML content for a submission ID.
func (m *Memory) PutXML(submissionID int64, doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.xml[submissionID] = doc
}

// Delete removes a submission from the store.
func (m *Memory) Delete(submissionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.json, submissionID)
	delete(m.xml, submissionID)
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, submissionID int64, _ string, format hook.Format) (*Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if format == hook.FormatXML {
		doc, ok := m.xml[submissionID]
		if !ok {
			return nil, ErrNotFound
		}
		return &Content{XML: doc}, nil
	}

	data, ok := m.json[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &Content{JSON: data}, nil
}
