// Package index keeps a full-text search index of rebuilt versions.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// DefaultLimit caps search results when no limit is given.
const DefaultLimit = 20

// maxEntityDocs bounds how many documents of one entity are looked up.
const maxEntityDocs = 10000

// Index is a bleve index with one document per version.
type Index struct {
	idx bleve.Index
}

// Hit is one matching version.
type Hit struct {
	Kind     model.Kind `json:"kind"`
	EntityID int64      `json:"entity_id"`
	From     time.Time  `json:"from"`
	Author   string     `json:"author"`
	Score    float64    `json:"score"`
}

// versionDoc is the indexed form of a version. Facets are searchable as
// "facets.<name>".
type versionDoc struct {
	Kind       string            `json:"kind"`
	Entity     string            `json:"entity"`
	EntityID   int64             `json:"entity_id"`
	FromMs     int64             `json:"from_ms"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Author     string            `json:"author"`
	Annotation string            `json:"annotation"`
	Facets     map[string]string `json:"facets"`
}

func buildMapping() mapping.IndexMapping {
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("kind", exact)
	doc.AddFieldMappingsAt("entity", exact)
	doc.AddFieldMappingsAt("author", exact)
	doc.AddFieldMappingsAt("entity_id", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("from_ms", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("from", bleve.NewDateTimeFieldMapping())
	doc.AddFieldMappingsAt("to", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Open opens the index at path, creating it if it does not exist.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// NewMemory creates an index that lives only in memory.
func NewMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("creating search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Close flushes and closes the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// Count returns the number of indexed versions.
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

// Search runs a query string query, e.g. "facets.status:RESOLVED author:someone@example.com".
func (i *Index) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit, 0, false)
	req.Fields = []string{"kind", "entity_id", "from_ms", "author"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", q, err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, m := range res.Hits {
		h := Hit{Score: m.Score}
		if s, ok := m.Fields["kind"].(string); ok {
			h.Kind = model.Kind(s)
		}
		if n, ok := m.Fields["entity_id"].(float64); ok {
			h.EntityID = int64(n)
		}
		if n, ok := m.Fields["from_ms"].(float64); ok {
			h.From = time.UnixMilli(int64(n)).UTC()
		}
		if s, ok := m.Fields["author"].(string); ok {
			h.Author = s
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func docID(kind model.Kind, id int64, from time.Time) string {
	return kind.FormatID(id) + "@" + strconv.FormatInt(from.UnixMilli(), 10)
}

// entityDocs returns the ids of all documents of an entity.
func (i *Index) entityDocs(ctx context.Context, entity string) ([]string, error) {
	q := bleve.NewTermQuery(entity)
	q.SetField("entity")
	req := bleve.NewSearchRequestOptions(q, maxEntityDocs, 0, false)
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("finding documents of %s: %w", entity, err)
	}
	ids := make([]string, len(res.Hits))
	for n, m := range res.Hits {
		ids[n] = m.ID
	}
	return ids, nil
}

// Sink mirrors the version histories of rebuilt entities of one kind.
type Sink[F model.Facet, M model.Field] struct {
	index  *Index
	schema *model.Schema[F, M]
}

// NewSink creates a sink writing into index.
func NewSink[F model.Facet, M model.Field](index *Index, schema *model.Schema[F, M]) *Sink[F, M] {
	return &Sink[F, M]{index: index, schema: schema}
}

// Save indexes every version of e, saved or not, and removes documents of
// versions e no longer has. Another sink may have stored versions that never
// reached the index, so persistence states are not consulted.
func (s *Sink[F, M]) Save(ctx context.Context, e *model.Entity[F, M]) error {
	entity := e.Kind.FormatID(e.ID)
	batch := s.index.idx.NewBatch()

	current := make(map[string]bool, e.Len())
	for _, v := range e.Versions() {
		r := s.schema.Record(v)
		id := docID(e.Kind, e.ID, v.From)
		current[id] = true
		doc := versionDoc{
			Kind:       string(e.Kind),
			Entity:     entity,
			EntityID:   e.ID,
			FromMs:     v.From.UnixMilli(),
			From:       r.From,
			To:         r.To,
			Author:     r.Author,
			Annotation: r.Annotation,
			Facets:     r.Facets,
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("indexing %s: %w", entity, err)
		}
	}

	existing, err := s.index.entityDocs(ctx, entity)
	if err != nil {
		return err
	}
	for _, id := range existing {
		if !current[id] {
			batch.Delete(id)
		}
	}

	if batch.Size() == 0 {
		return nil
	}
	if err := s.index.idx.Batch(batch); err != nil {
		return fmt.Errorf("writing index batch for %s: %w", entity, err)
	}
	return nil
}
