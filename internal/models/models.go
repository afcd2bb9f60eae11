package models

import "time"

// User represents an account within the ShareVault platform.
type User struct {
	ID        string
	Name      string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// File stores metadata for an uploaded file. The raw bytes live behind the
// blob storage boundary under Path. OwnerID is set at creation and never
// reassigned.
type File struct {
	ID            string
	OwnerID       string
	OriginalName  string
	Filename      string
	Path          string
	Size          int64
	MimeType      string
	IsPublic      bool
	DownloadCount int64
	Description   string
	UploadDate    time.Time
}

// ShareLink grants time-bounded, optionally single-use access to one file
// without authentication. Token, FileID and CreatedBy are immutable after
// creation; IsActive only ever transitions true -> false.
type ShareLink struct {
	ID             string
	FileID         string
	CreatedBy      string
	Token          string
	ExpiresAt      time.Time
	OneTimeUse     bool
	AccessCount    int64
	LastAccessedAt *time.Time
	IsActive       bool
	CreatedAt      time.Time
}

// FileWithOwner pairs a file record with the display details of its owner,
// produced by the read-time join used for public listings.
type FileWithOwner struct {
	File
	OwnerName  string
	OwnerEmail string
}
