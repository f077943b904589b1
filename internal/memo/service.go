package memo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"memoflux/internal/analysis"
	"memoflux/internal/jobs"
	"memoflux/internal/schedule"
	"memoflux/internal/tags"
)

var (
	ErrNotFound          = errors.New("memo not found")
	ErrEmptyMemo         = errors.New("memo has no content")
	ErrDuplicateImage    = errors.New("image already imported")
	ErrAlreadyProcessing = errors.New("memo is already being processed")
	ErrNoResponse        = errors.New("memo has no analysis response")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskDrift         = errors.New("task records out of sync with response")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrEncodeResponse    = errors.New("encode response")
)

type Service struct {
	DB    *gorm.DB
	Tasks *schedule.Store
	Tags  *tags.Registry
	Jobs  *jobs.Repo
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewService(db *gorm.DB, tasks *schedule.Store, tagReg *tags.Registry, jobsRepo *jobs.Repo, log zerolog.Logger) *Service {
	return &Service{DB: db, Tasks: tasks, Tags: tagReg, Jobs: jobsRepo, Log: log, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type CreateTextInput struct {
	Text          string
	Title         string
	Tags          []string
	ScheduledDate *time.Time
}

// CreateText stores a typed memo. Hashtags in the text join the given tags.
func (s *Service) CreateText(ctx context.Context, in CreateTextInput) (*Memo, error) {
	text := strings.TrimSpace(in.Text)
	title := strings.TrimSpace(in.Title)
	if text == "" && title == "" {
		return nil, ErrEmptyMemo
	}

	now := s.now()
	m := Memo{
		ID:            uuid.New(),
		UserInputText: text,
		Title:         title,
		Tags:          toJSON(analysis.MergeTags(in.Tags, ExtractTags(text))),
		Source:        SourceManual,
		ScheduledDate: in.ScheduledDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return s.Tags.WithTx(tx).Sync(ctx, m.Tags)
	})
	if err != nil {
		s.Log.Error().Err(err).Msg("create text memo")
		return nil, err
	}
	return &m, nil
}

type CreateImageInput struct {
	Image          []byte
	RecognizedText string
	Tags           []string
	Source         Source
}

// CreateFromImage stores a photo memo. An image byte-identical to a stored one is rejected.
func (s *Service) CreateFromImage(ctx context.Context, in CreateImageInput) (*Memo, error) {
	if len(in.Image) == 0 {
		return nil, ErrEmptyMemo
	}
	src := in.Source
	if src == "" {
		src = SourceManual
	}

	now := s.now()
	m := Memo{
		ID:             uuid.New(),
		ImageData:      in.Image,
		RecognizedText: strings.TrimSpace(in.RecognizedText),
		Tags:           toJSON(analysis.MergeTags(in.Tags)),
		Source:         src,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dup, err := s.hasImage(tx, in.Image)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateImage
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return s.Tags.WithTx(tx).Sync(ctx, m.Tags)
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateImage) {
			s.Log.Error().Err(err).Msg("create image memo")
		}
		return nil, err
	}
	return &m, nil
}

func (s *Service) hasImage(tx *gorm.DB, image []byte) (bool, error) {
	var candidates [][]byte
	if err := tx.Model(&Memo{}).
		Where("image_data IS NOT NULL AND length(image_data) = ?", len(image)).
		Pluck("image_data", &candidates).Error; err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	for _, c := range candidates {
		if bytes.Equal(c, image) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Memo, error) {
	return s.get(s.DB.WithContext(ctx), id)
}

func (s *Service) get(tx *gorm.DB, id uuid.UUID) (*Memo, error) {
	var m Memo
	if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

type ListFilter struct {
	Tag   string
	Query string
	Limit int
}

// List returns memos newest first. Query matches title and text case-insensitively.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Memo, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.DB.WithContext(ctx).Model(&Memo{})
	if qText := strings.ToLower(strings.TrimSpace(f.Query)); qText != "" {
		like := "%" + qText + "%"
		q = q.Where("lower(title) LIKE ? OR lower(recognized_text) LIKE ? OR lower(user_input_text) LIKE ?", like, like, like)
	}
	q = q.Order("created_at desc")

	tag := strings.TrimSpace(f.Tag)
	if tag == "" {
		var out []Memo
		err := q.Limit(limit).Find(&out).Error
		return out, err
	}

	// tag lists are JSON, filtered here to keep the query portable
	var rows []Memo
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Memo, 0, limit)
	for _, m := range rows {
		if m.HasTag(tag) {
			out = append(out, m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Delete removes the memo with its task records and unstarted jobs.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Memo{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := s.Tasks.WithTx(tx).DeleteForMemo(ctx, id); err != nil {
			return err
		}
		return s.Jobs.WithTx(tx).CancelForMemo(ctx, id)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.Log.Error().Err(err).Str("memo_id", id.String()).Msg("delete memo")
	}
	return err
}

// SetTags replaces the tag list and records a registry use for every name in it.
func (s *Service) SetTags(ctx context.Context, id uuid.UUID, names []string) (*Memo, error) {
	next := analysis.MergeTags(names)
	return s.writeTags(ctx, id, func(*Memo) ([]string, []string, bool) { return next, next, true })
}

// AddTag appends name. A name already on the memo changes nothing.
func (s *Service) AddTag(ctx context.Context, id uuid.UUID, name string) (*Memo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, tags.ErrEmptyName
	}
	return s.writeTags(ctx, id, func(m *Memo) ([]string, []string, bool) {
		if m.HasTag(name) {
			return nil, nil, false
		}
		return append(append([]string{}, m.Tags...), name), []string{name}, true
	})
}

// RemoveTag drops name from the memo. Registry entries are left to Sweep.
func (s *Service) RemoveTag(ctx context.Context, id uuid.UUID, name string) (*Memo, error) {
	return s.writeTags(ctx, id, func(m *Memo) ([]string, []string, bool) {
		if !m.HasTag(name) {
			return nil, nil, false
		}
		kept := make([]string, 0, len(m.Tags))
		for _, t := range m.Tags {
			if t != name {
				kept = append(kept, t)
			}
		}
		return kept, nil, true
	})
}

// writeTags applies edit to the current memo inside one transaction. edit
// returns the new list, the names to touch in the registry and whether anything changed.
func (s *Service) writeTags(ctx context.Context, id uuid.UUID, edit func(m *Memo) (next, touch []string, changed bool)) (*Memo, error) {
	var out *Memo
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.get(tx, id)
		if err != nil {
			return err
		}
		next, touch, changed := edit(m)
		if !changed {
			out = m
			return nil
		}
		if err := tx.Model(&Memo{}).Where("id = ?", id).
			Updates(map[string]any{"tags": toJSON(next), "updated_at": s.now()}).Error; err != nil {
			return err
		}
		if err := s.Tags.WithTx(tx).Sync(ctx, touch); err != nil {
			return err
		}
		m.Tags = toJSON(next)
		out = m
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.Log.Error().Err(err).Str("memo_id", id.String()).Msg("update memo tags")
		}
		return nil, err
	}
	return out, nil
}

// SetRecognizedText stores OCR output unless the memo already has recognized text.
func (s *Service) SetRecognizedText(ctx context.Context, id uuid.UUID, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	res := s.DB.WithContext(ctx).Model(&Memo{}).
		Where("id = ? AND recognized_text = ?", id, "").
		Updates(map[string]any{"recognized_text": text, "updated_at": s.now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TagsInUse lists every tag attached to at least one memo.
func (s *Service) TagsInUse(ctx context.Context) ([]string, error) {
	var rows []Memo
	if err := s.DB.WithContext(ctx).Select("id", "tags").Find(&rows).Error; err != nil {
		return nil, err
	}
	lists := make([][]string, 0, len(rows))
	for _, m := range rows {
		lists = append(lists, m.Tags)
	}
	return analysis.MergeTags(lists...), nil
}

func toJSON(names []string) datatypes.JSONSlice[string] {
	if names == nil {
		names = []string{}
	}
	return datatypes.JSONSlice[string](names)
}
