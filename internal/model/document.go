// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// DocumentKind identifies a user-owned JSON document.
type DocumentKind string

const (
	DocumentPreferences DocumentKind = "preferences"
	DocumentToneProfile DocumentKind = "tone_profile"
)

// DocumentSchemaVersion is the current schema version written for new
// documents. Readers must tolerate older versions.
const DocumentSchemaVersion = 1

// MaxDocumentSize caps stored document payloads (bytes).
const MaxDocumentSize = 32 * 1024

// Document validation errors.
var (
	ErrDocumentNotObject   = errors.New("document must be a JSON object")
	ErrDocumentTooLarge    = errors.New("document exceeds maximum size")
	ErrUnknownDocumentKind = errors.New("unknown document kind")
)

// Document is a versioned, user-owned JSON blob such as preferences or a
// tone profile. The payload is schema-validated at the boundary rather than
// stored as an untyped bag.
type Document struct {
	UserID        string          `json:"-"`
	Kind          DocumentKind    `json:"-"`
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsValid reports whether the kind names a known document.
func (k DocumentKind) IsValid() bool {
	return k == DocumentPreferences || k == DocumentToneProfile
}

// Validate checks the document payload shape and size.
func (d *Document) Validate() error {
	if !d.Kind.IsValid() {
		return ErrUnknownDocumentKind
	}
	if len(d.Data) > MaxDocumentSize {
		return ErrDocumentTooLarge
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(d.Data, &obj); err != nil {
		return ErrDocumentNotObject
	}

	return nil
}

// EmptyDocument returns a valid empty document of the given kind.
func EmptyDocument(userID string, kind DocumentKind) *Document {
	return &Document{
		UserID:        userID,
		Kind:          kind,
		SchemaVersion: DocumentSchemaVersion,
		Data:          json.RawMessage(`{}`),
	}
}
