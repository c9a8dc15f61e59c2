package cv

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceEditor        Source = "editor"
	SourceMasterProfile Source = "master_profile"
	SourceUpload        Source = "upload"
)

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceEditor, SourceMasterProfile, SourceUpload:
		return Source(s), nil
	case "":
		return SourceEditor, nil
	}
	return "", fmt.Errorf("invalid cv source %q", s)
}

type Version struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Content       string
	Version       int
	IsCurrent     bool
	Source        Source
	ChangeSummary string
	CreatedAt     time.Time
}

// ForMatching is the CV view the matcher consumes. Zero values mean no CV.
type ForMatching struct {
	Content string
	Version int
	CVID    uuid.UUID
}

func (f ForMatching) Empty() bool { return f.Version == 0 || f.Content == "" }
