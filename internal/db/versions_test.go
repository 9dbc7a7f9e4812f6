package db

import (
	"context"
	"testing"
	"time"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// attachmentHistory builds an attachment with one version per start offset in hours.
func attachmentHistory(t *testing.T, hours ...int) *model.Attachment {
	t.Helper()
	att := model.NewEntity[model.AttachmentFacet, model.AttachmentMeasure](model.KindAttachment, 5, 1, "billy@example.com", t0)
	for i := len(hours) - 1; i >= 0; i-- {
		facets := map[model.AttachmentFacet]string{
			model.AttachmentRequests: "review?(moist@example.com)",
			model.AttachmentIsPatch:  "1",
		}
		from := t0.Add(time.Duration(hours[i]) * time.Hour)
		var (
			v   *model.AttachmentVersion
			err error
		)
		if next := att.First(); next == nil {
			v, err = model.NewLatest[model.AttachmentFacet, model.AttachmentMeasure](facets, "moist@example.com", from, "IMPORTED")
		} else {
			v, err = next.Predecessor(facets, "moist@example.com", from, "IMPORTED")
		}
		if err != nil {
			t.Fatalf("building version: %v", err)
		}
		v.Measurements[model.AttachmentNumber] = int64(i + 1)
		if err := att.Prepend(v); err != nil {
			t.Fatalf("Prepend: %v", err)
		}
	}
	return att
}

func TestVersionStoreSaveWritesOnlyUnsaved(t *testing.T) {
	db := mustInit(t)
	ctx := context.Background()
	store := NewVersionStore(db, model.AttachmentSchema)

	att := attachmentHistory(t, 0, 2)
	if err := store.Save(ctx, att); err != nil {
		t.Fatalf("Save: %v", err)
	}
	att.MarkSaved()

	// A saved version changed behind the store's back is not rewritten.
	att.First().Author = "someone-else@example.com"
	if err := store.Save(ctx, att); err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := store.Find(ctx, 5)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.Len() != 2 {
		t.Fatalf("found %d versions, want 2", found.Len())
	}
	if got := found.First().Author; got != "moist@example.com" {
		t.Errorf("author = %q, want the originally written one", got)
	}
	if got := found.Latest().Facets[model.AttachmentRequests]; got != "review?(moist@example.com)" {
		t.Errorf("requests = %q", got)
	}
	if found.ParentID != 0 {
		t.Errorf("parent id = %d without a snapshot, want 0", found.ParentID)
	}
}

func TestVersionStoreReplacesNewHistory(t *testing.T) {
	db := mustInit(t)
	ctx := context.Background()
	store := NewVersionStore(db, model.AttachmentSchema)

	if err := store.Save(ctx, attachmentHistory(t, 0, 1, 2)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, attachmentHistory(t, 0, 3)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := store.Find(ctx, 5)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.Len() != 2 {
		t.Fatalf("found %d versions, want the replacing 2", found.Len())
	}
	if err := found.Validate(); err != nil {
		t.Errorf("stored history is not contiguous: %v", err)
	}

	n, err := ClearVersions(db, string(model.KindAttachment))
	if err != nil || n != 2 {
		t.Errorf("ClearVersions = %d, %v; want 2", n, err)
	}
	if found, err := store.Find(ctx, 5); err != nil || found != nil {
		t.Errorf("Find after clear = %v, %v; want nil, nil", found, err)
	}
}
