package store

import "errors"

var (
	ErrNotFound      = errors.New("entry not found")
	ErrSchemaVersion = errors.New("stored blob has a newer schema version")
	ErrUnknownKind   = errors.New("unknown pending entry kind")
	ErrClosed        = errors.New("store is closed")
)
