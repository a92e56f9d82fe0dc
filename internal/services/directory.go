package services

import (
	"context"
	"fmt"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"gorm.io/gorm"
)

// SenderRef identifies a message author by directory kind and id
type SenderRef struct {
	Kind models.SenderKind
	ID   string
}

// SenderDirectory resolves display summaries for message authors. Read paths
// go through it instead of branching on the author type themselves.
type SenderDirectory interface {
	Summaries(ctx context.Context, refs []SenderRef) (map[SenderRef]models.UserSummary, error)
}

// UserDirectory serves both kinds from the User table; administrators are
// users carrying the ADMIN role.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) Summaries(ctx context.Context, refs []SenderRef) (map[SenderRef]models.UserSummary, error) {
	out := make(map[SenderRef]models.UserSummary, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load sender summaries: %w", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, r := range refs {
		if u, ok := byID[r.ID]; ok {
			s := u.Summary()
			if r.Kind != "" {
				s.Kind = string(r.Kind)
			}
			out[r] = s
			continue
		}
		out[r] = unknownSender(r)
	}
	return out, nil
}

func unknownSender(r SenderRef) models.UserSummary {
	kind := r.Kind
	if kind == "" {
		kind = models.SenderKindUser
	}
	return models.UserSummary{ID: r.ID, Name: "Deleted user", Kind: string(kind)}
}

// summaryOf resolves a single user reference, falling back to a stub
func summaryOf(ctx context.Context, dir SenderDirectory, ref SenderRef) (models.UserSummary, error) {
	m, err := dir.Summaries(ctx, []SenderRef{ref})
	if err != nil {
		return models.UserSummary{}, err
	}
	return m[ref], nil
}
