package services

import (
	"context"
	"fmt"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/crypto"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
)

type unsealedMessages interface {
	ScanUnsealed(ctx context.Context, sealedPrefix, afterID string, limit int) ([]models.DirectMessage, error)
	ReplaceBody(ctx context.Context, id, oldBody, newBody string) (bool, error)
}

type unsealedSnapshots interface {
	ScanUnsealedSnapshots(ctx context.Context, sealedPrefix, afterID string, limit int) ([]models.Conversation, error)
	ReplaceSnapshotBody(ctx context.Context, id, oldBody, newBody string) (bool, error)
}

// ResealReport counts what a reseal pass did
type ResealReport struct {
	Messages   int `json:"messages"`
	Snapshots  int `json:"snapshots"`
	Unreadable int `json:"unreadable"`
	Skipped    int `json:"skipped"`
}

// Resealer rewrites legacy-format and plaintext bodies into the current
// sealed format. Bodies that fail authentication are left untouched.
type Resealer struct {
	messages  unsealedMessages
	snapshots unsealedSnapshots
	cipher    Cipher
	batch     int
	dryRun    bool
}

func NewResealer(messages unsealedMessages, snapshots unsealedSnapshots, cipher Cipher, batch int, dryRun bool) *Resealer {
	if batch <= 0 {
		batch = 500
	}
	return &Resealer{messages: messages, snapshots: snapshots, cipher: cipher, batch: batch, dryRun: dryRun}
}

func (r *Resealer) Run(ctx context.Context) (ResealReport, error) {
	var report ResealReport
	log := logger.Component("reseal")

	after := ""
	for {
		msgs, err := r.messages.ScanUnsealed(ctx, crypto.SealedPrefix, after, r.batch)
		if err != nil {
			return report, err
		}
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			after = m.ID
			outcome, err := r.reseal(ctx, m.Body, func(sealed string) (bool, error) {
				return r.messages.ReplaceBody(ctx, m.ID, m.Body, sealed)
			})
			if err != nil {
				return report, fmt.Errorf("message %s: %w", m.ID, err)
			}
			r.tally(&report, outcome, &report.Messages)
		}
		log.Info().Int("messages", report.Messages).Str("after", after).Msg("reseal batch done")
	}

	after = ""
	for {
		convs, err := r.snapshots.ScanUnsealedSnapshots(ctx, crypto.SealedPrefix, after, r.batch)
		if err != nil {
			return report, err
		}
		if len(convs) == 0 {
			break
		}
		for _, c := range convs {
			after = c.ID
			outcome, err := r.reseal(ctx, c.LastMessageBody, func(sealed string) (bool, error) {
				return r.snapshots.ReplaceSnapshotBody(ctx, c.ID, c.LastMessageBody, sealed)
			})
			if err != nil {
				return report, fmt.Errorf("conversation %s: %w", c.ID, err)
			}
			r.tally(&report, outcome, &report.Snapshots)
		}
	}

	return report, nil
}

type resealOutcome int

const (
	resealed resealOutcome = iota
	resealUnreadable
	resealSkipped
)

func (r *Resealer) reseal(ctx context.Context, body string, replace func(string) (bool, error)) (resealOutcome, error) {
	if err := ctx.Err(); err != nil {
		return resealSkipped, err
	}

	text, err := r.cipher.Open(body)
	if err != nil {
		return resealUnreadable, nil
	}
	sealed, err := r.cipher.Seal(text)
	if err != nil {
		return resealSkipped, err
	}
	if r.dryRun {
		return resealed, nil
	}

	swapped, err := replace(sealed)
	if err != nil {
		return resealSkipped, err
	}
	if !swapped {
		// changed underneath us; the next pass picks it up if still legacy
		return resealSkipped, nil
	}
	return resealed, nil
}

func (r *Resealer) tally(report *ResealReport, o resealOutcome, done *int) {
	switch o {
	case resealed:
		*done++
	case resealUnreadable:
		report.Unreadable++
	default:
		report.Skipped++
	}
}
