package dfile

import "sync"

// slot holds the lazy buffer/text duality of a file's source or target
// content: the two representations are kept in sync through the owning
// file's encoding, and assigning either one invalidates the other.
type slot struct {
	mu       sync.Mutex
	hasBytes bool
	bytes    []byte
	hasText  bool
	text     string

	// loader lazily produces the initial bytes (source slot only); nil for
	// a target slot, which starts empty until a processor writes to it.
	loader func() ([]byte, error)
}

func (s *slot) Buffer(encoding string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferLocked(encoding)
}

func (s *slot) bufferLocked(encoding string) ([]byte, error) {
	if s.hasBytes {
		return s.bytes, nil
	}
	if s.hasText {
		s.bytes = Encode(s.text, encoding)
		s.hasBytes = true
		return s.bytes, nil
	}
	if s.loader != nil {
		b, err := s.loader()
		if err != nil {
			return nil, err
		}
		s.bytes = b
		s.hasBytes = true
		return s.bytes, nil
	}
	return nil, nil
}

func (s *slot) Content(encoding string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasText {
		return s.text, nil
	}
	b, err := s.bufferLocked(encoding)
	if err != nil {
		return "", err
	}
	s.text = Decode(b, encoding)
	s.hasText = true
	return s.text, nil
}

// SetBuffer stores raw bytes and invalidates the cached text form.
func (s *slot) SetBuffer(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytes = b
	s.hasBytes = true
	s.hasText = false
	s.text = ""
}

// SetContent stores text and invalidates the cached buffer form.
func (s *slot) SetContent(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.hasText = true
	s.hasBytes = false
	s.bytes = nil
}

// HasAny reports whether this slot has ever been populated (loaded or
// written), without forcing a lazy load.
func (s *slot) HasAny() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasBytes || s.hasText
}

// clone deep-copies the slot's currently-held representations and shares
// its loader, so a clone of a not-yet-loaded source slot reads the same
// origin lazily on first access.
func (s *slot) clone() *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &slot{hasBytes: s.hasBytes, hasText: s.hasText, text: s.text, loader: s.loader}
	if s.bytes != nil {
		out.bytes = append([]byte(nil), s.bytes...)
	}
	return out
}
