package main

import (
	"sync"

	"github.com/google/uuid"

	"cropstudio/cropper"
)

// SessionStore keeps the open editors of the web host, keyed by a random id.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*storedSession
}

type storedSession struct {
	file   string
	editor *cropper.Editor
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*storedSession)}
}

func (s *SessionStore) Add(file string, e *cropper.Editor) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &storedSession{file: file, editor: e}
	return id
}

func (s *SessionStore) Get(id string) (*storedSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[id]
	return ss, ok
}

// Remove cancels the editor and forgets it.
func (s *SessionStore) Remove(id string) bool {
	s.mu.Lock()
	ss, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		ss.editor.Cancel()
	}
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close cancels every open editor.
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*storedSession)
	s.mu.Unlock()
	for _, ss := range sessions {
		ss.editor.Cancel()
	}
}
