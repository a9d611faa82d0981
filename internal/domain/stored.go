package domain

import (
	"errors"
	"time"
)

var (
	// ErrImageNotFound is returned when a bucket holds no object under the requested name.
	ErrImageNotFound = errors.New("image not found")
	// ErrImageExists is returned when an upload would overwrite an existing object.
	ErrImageExists = errors.New("image already exists")
)

// StoredLog is an ActivityLog persisted by the hosted api on behalf of one owner.
type StoredLog struct {
	ID        string
	OwnerID   string
	Log       ActivityLog
	CreatedAt time.Time
}

// StoredImage is a session photo held in a storage bucket.
type StoredImage struct {
	Bucket      string
	Name        string
	OwnerID     string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}
