package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoDocument is returned by Load when there is no users document yet.
var ErrNoDocument = errors.New("no users document")

// ErrMalformedDocument is returned by Load when the stored document can not be decoded.
var ErrMalformedDocument = errors.New("malformed users document")

// EncodeDocument serializes the document as indented JSON.
// A nil user list is written as an empty array.
func EncodeDocument(doc *Document) ([]byte, error) {
	out := Document{LastID: doc.LastID, Users: doc.Users}
	if out.Users == nil {
		out.Users = []UserRecord{}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// DecodeDocument parses a stored users document. Besides the current
// {"last_id": ..., "users": [...]} form it accepts a bare array of records,
// in which case the counter is restored from the highest id present.
func DecodeDocument(b []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedDocument)
	}

	var doc Document
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Users); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	for _, u := range doc.Users {
		if u.ID > doc.LastID {
			doc.LastID = u.ID
		}
	}
	if doc.Users == nil {
		doc.Users = []UserRecord{}
	}

	return &doc, nil
}
