package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

var allKinds = []model.Kind{model.KindIssue, model.KindAttachment}

// parseKinds accepts a kind name or "all".
func parseKinds(name string) ([]model.Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "all" {
		return allKinds, nil
	}
	k := model.Kind(name)
	if err := model.ValidateKind(k); err != nil {
		return nil, err
	}
	return []model.Kind{k}, nil
}

// exportEntity loads the stored history of an entity in its name-keyed form.
// It returns db.ErrNotFound when nothing is stored.
func exportEntity(ctx context.Context, conn *sql.DB, kind model.Kind, id int64) (*model.EntityRecord, error) {
	var rec model.EntityRecord
	switch kind {
	case model.KindIssue:
		e, err := db.NewVersionStore(conn, model.IssueSchema).Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("%s: %w", kind.FormatID(id), db.ErrNotFound)
		}
		rec = model.IssueSchema.Export(e)
	case model.KindAttachment:
		e, err := db.NewVersionStore(conn, model.AttachmentSchema).Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("%s: %w", kind.FormatID(id), db.ErrNotFound)
		}
		rec = model.AttachmentSchema.Export(e)
	default:
		return nil, model.ValidateKind(kind)
	}
	return &rec, nil
}

// countVersions returns the stored version and entity counts of a kind.
func countVersions(ctx context.Context, conn *sql.DB, kind model.Kind) (int, int, error) {
	switch kind {
	case model.KindIssue:
		return db.NewVersionStore(conn, model.IssueSchema).CountVersions(ctx)
	case model.KindAttachment:
		return db.NewVersionStore(conn, model.AttachmentSchema).CountVersions(ctx)
	}
	return 0, 0, model.ValidateKind(kind)
}
