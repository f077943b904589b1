// Package tags keeps the registry of known tag names with usage statistics.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("tag not found")
	ErrEmptyName = errors.New("tag name is empty")
)

type Entry struct {
	ID         uint64    `gorm:"primaryKey"`
	Name       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	LastUsedAt time.Time `gorm:"index;not null"`
	UsageCount int64     `gorm:"not null;default:0"`
	Color      *string   `gorm:"type:text"`
	Category   *string   `gorm:"type:text"`
}

func (Entry) TableName() string { return "tag_entries" }

// UsageSource reports every tag currently attached to a memo.
type UsageSource interface {
	TagsInUse(ctx context.Context) ([]string, error)
}

type Registry struct {
	DB  *gorm.DB
	Log zerolog.Logger
	Now func() time.Time
}

func NewRegistry(db *gorm.DB, log zerolog.Logger) *Registry {
	return &Registry{DB: db, Log: log, Now: time.Now}
}

func (r *Registry) WithTx(tx *gorm.DB) *Registry {
	return &Registry{DB: tx, Log: r.Log, Now: r.Now}
}

func (r *Registry) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Touch records one use of name, creating the entry on first use.
func (r *Registry) Touch(ctx context.Context, name string) (*Entry, error) {
	return r.use(ctx, name, nil, nil)
}

// Create adds a tag by hand. An existing entry counts the use and takes any non-nil color or category.
func (r *Registry) Create(ctx context.Context, name string, color, category *string) (*Entry, error) {
	return r.use(ctx, name, color, category)
}

func (r *Registry) use(ctx context.Context, name string, color, category *string) (*Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	now := r.now()

	var e Entry
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&e).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			e = Entry{
				Name:       name,
				CreatedAt:  now,
				LastUsedAt: now,
				UsageCount: 1,
				Color:      color,
				Category:   category,
			}
			if err := tx.Create(&e).Error; err != nil {
				return fmt.Errorf("create tag: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("find tag: %w", err)
		}

		updates := map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
		}
		if color != nil {
			updates["color"] = *color
		}
		if category != nil {
			updates["category"] = *category
		}
		if err := tx.Model(&Entry{}).Where("id = ?", e.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update tag: %w", err)
		}
		return tx.First(&e, e.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Sync touches every distinct non-blank name once.
func (r *Registry) Sync(ctx context.Context, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if _, err := r.Touch(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, name string) (*Entry, error) {
	var e Entry
	err := r.DB.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Registry) Delete(ctx context.Context, name string) error {
	res := r.DB.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Delete(&Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Sweep deletes entries no memo references and returns their names. It reads
// the source and the registry separately, so a tag attached concurrently may
// be removed and re-created on its next use.
func (r *Registry) Sweep(ctx context.Context, src UsageSource) ([]string, error) {
	inUse, err := src.TagsInUse(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect tags in use: %w", err)
	}
	keep := make(map[string]struct{}, len(inUse))
	for _, n := range inUse {
		keep[n] = struct{}{}
	}

	var all []Entry
	if err := r.DB.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, err
	}

	var removed []string
	var ids []uint64
	for _, e := range all {
		if _, ok := keep[e.Name]; ok {
			continue
		}
		removed = append(removed, e.Name)
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Delete(&Entry{}).Error; err != nil {
		return nil, err
	}
	r.Log.Info().Int("removed", len(removed)).Msg("tag sweep")
	return removed, nil
}

func (r *Registry) MostUsed(ctx context.Context, limit int) ([]Entry, error) {
	return r.list(ctx, "usage_count desc, name asc", limit)
}

func (r *Registry) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return r.list(ctx, "last_used_at desc, name asc", limit)
}

func (r *Registry) list(ctx context.Context, order string, limit int) ([]Entry, error) {
	q := r.DB.WithContext(ctx).Order(order)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Entry
	err := q.Find(&out).Error
	return out, err
}

// Search matches names containing query, case-insensitively, most used first.
func (r *Registry) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.MostUsed(ctx, limit)
	}
	q := r.DB.WithContext(ctx).
		Where("lower(name) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("usage_count desc, name asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Entry
	err := q.Find(&out).Error
	return out, err
}

// Names lists every registered name, most used first.
func (r *Registry) Names(ctx context.Context) ([]string, error) {
	var out []string
	err := r.DB.WithContext(ctx).Model(&Entry{}).
		Order("usage_count desc, name asc").
		Pluck("name", &out).Error
	return out, err
}
