// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyEnrolled is returned when a reference already exists.
	ErrAlreadyEnrolled = errors.New("gesture: key already enrolled")
	// ErrNoReference is returned when matching is attempted before enrollment.
	ErrNoReference = errors.New("gesture: no key enrolled")
	// ErrEmptySequence is returned when an empty trace is offered for enrollment.
	ErrEmptySequence = errors.New("gesture: empty sequence")
)

// BlobStore is the persistent key/value contract used to mirror the reference.
type BlobStore interface {
	StoreBlob(address uint32, data []byte) error
	LoadBlob(address uint32, length int) ([]byte, error)
}

// Store holds the single enrolled reference. The first successful Enroll
// wins; later attempts are rejected and leave the reference untouched.
type Store struct {
	mu  sync.RWMutex
	ref Sequence
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Enroll takes ownership of seq as the reference.
func (s *Store) Enroll(seq Sequence) error {
	if len(seq) == 0 {
		return ErrEmptySequence
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ref) > 0 {
		return ErrAlreadyEnrolled
	}
	s.ref = seq.Clone()
	return nil
}

// Reference returns a copy of the enrolled sequence, or false if there is
// none.
func (s *Store) Reference() (Sequence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ref) == 0 {
		return nil, false
	}
	return s.ref.Clone(), true
}

// Enrolled reports whether a reference exists.
func (s *Store) Enrolled() bool {
	_, ok := s.Reference()
	return ok
}

// Persist writes the reference to bs at address.
func (s *Store) Persist(bs BlobStore, address uint32) error {
	ref, ok := s.Reference()
	if !ok {
		return ErrNoReference
	}
	if err := bs.StoreBlob(address, Encode(ref)); err != nil {
		return fmt.Errorf("gesture: persist reference: %w", err)
	}
	return nil
}

// Restore loads a reference previously written by Persist and enrolls it.
func (s *Store) Restore(bs BlobStore, address uint32) error {
	hdr, err := bs.LoadBlob(address, headerSize)
	if err != nil {
		return fmt.Errorf("gesture: load header: %w", err)
	}
	n, err := decodeHeader(hdr)
	if err != nil {
		return err
	}
	blob, err := bs.LoadBlob(address, headerSize+n*sampleSize)
	if err != nil {
		return fmt.Errorf("gesture: load reference: %w", err)
	}
	seq, err := Decode(blob)
	if err != nil {
		return err
	}
	return s.Enroll(seq)
}
