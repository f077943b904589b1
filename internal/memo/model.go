package memo

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"memoflux/internal/analysis"
)

type Source string

const (
	SourceManual   Source = "manual"
	SourceShortcut Source = "shortcut"
)

// Memo is one captured note. HasResponse is true exactly when ResponseData
// holds a decodable response, and never together with IsProcessing.
type Memo struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ImageData      []byte
	RecognizedText string `gorm:"type:text;not null;default:''"`
	UserInputText  string `gorm:"type:text;not null;default:''"`
	Title          string `gorm:"type:text;not null;default:''"`
	Tags           datatypes.JSONSlice[string]
	Source         Source `gorm:"type:text;not null;default:'manual'"`

	ScheduledDate *time.Time

	IsProcessing bool `gorm:"index;not null;default:false"`
	ProcessedAt  *time.Time
	HasResponse  bool `gorm:"not null;default:false"`
	ResponseData []byte

	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *Memo) HasImage() bool { return len(m.ImageData) > 0 }

// Body is the recognized text, or the typed text when nothing was recognized.
func (m *Memo) Body() string {
	if t := strings.TrimSpace(m.RecognizedText); t != "" {
		return t
	}
	return strings.TrimSpace(m.UserInputText)
}

// ContentForAnalysis is the text sent for analysis of memos without an image.
func (m *Memo) ContentForAnalysis() string {
	title, body := strings.TrimSpace(m.Title), m.Body()
	switch {
	case title != "" && body != "":
		return title + "\n\n" + body
	case title != "":
		return title
	default:
		return body
	}
}

// Response decodes the stored response. It returns ErrNoResponse when there is none.
func (m *Memo) Response() (*analysis.Response, error) {
	if !m.HasResponse || len(m.ResponseData) == 0 {
		return nil, ErrNoResponse
	}
	return analysis.Decode(m.ResponseData)
}

func (m *Memo) HasTag(name string) bool {
	for _, t := range m.Tags {
		if t == name {
			return true
		}
	}
	return false
}
