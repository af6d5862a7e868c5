package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-adp-comments/internal/models"
)

// SearchObserver is notified of every index operation and its outcome.
type SearchObserver interface {
	RecordSearchOperation(operation, outcome string)
}

// SearchRepository is a small inverted index kept in Redis. Documents are
// stored as JSON and every token of their text fields maps to a set of
// document ids.
type SearchRepository struct {
	client   redis.UniversalClient
	observer SearchObserver
	// afterLoad runs between reading a document and committing its
	// replacement. Tests use it to interleave writers.
	afterLoad func(id string)
}

// maxWatchAttempts bounds optimistic retries when a document key changes
// between read and commit.
const maxWatchAttempts = 5

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// NewSearchRepository constructs a SearchRepository.
func NewSearchRepository(client redis.UniversalClient, observer SearchObserver) *SearchRepository {
	return &SearchRepository{client: client, observer: observer}
}

func docKey(index, id string) string {
	return fmt.Sprintf("search:%s:doc:%s", index, id)
}

func termKey(index, token string) string {
	return fmt.Sprintf("search:%s:term:%s", index, token)
}

func docsKey(index string) string {
	return fmt.Sprintf("search:%s:docs", index)
}

// PutDocument stores doc, replacing any earlier version with the same id.
// The document key is watched so concurrent writers of the same id never
// leave stale terms behind.
func (r *SearchRepository) PutDocument(ctx context.Context, index string, doc models.SearchDocument) (err error) {
	defer r.record("put", &err)

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}

	err = r.watch(ctx, docKey(index, doc.ID), func(tx *redis.Tx) error {
		previous, err := loadDocument(ctx, tx, index, doc.ID)
		if err != nil {
			return err
		}
		r.loaded(doc.ID)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != nil {
				for token := range documentTokens(*previous) {
					pipe.SRem(ctx, termKey(index, token), doc.ID)
				}
			}
			pipe.Set(ctx, docKey(index, doc.ID), payload, 0)
			pipe.SAdd(ctx, docsKey(index), doc.ID)
			for token := range documentTokens(doc) {
				pipe.SAdd(ctx, termKey(index, token), doc.ID)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns the stored document or nil when the index does not hold it.
func (r *SearchRepository) GetDocument(ctx context.Context, index, id string) (doc *models.SearchDocument, err error) {
	defer r.record("get", &err)
	return loadDocument(ctx, r.client, index, id)
}

// DeleteDocument removes one document. Removing an unknown id is not an error.
func (r *SearchRepository) DeleteDocument(ctx context.Context, index, id string) (err error) {
	defer r.record("delete", &err)
	return r.remove(ctx, index, id)
}

// DeleteDocuments removes every listed document, stopping at the first failure.
func (r *SearchRepository) DeleteDocuments(ctx context.Context, index string, ids []string) (err error) {
	defer r.record("delete", &err)
	for _, id := range ids {
		if err := r.remove(ctx, index, id); err != nil {
			return err
		}
	}
	return nil
}

// SearchDocuments returns the documents containing every token of the query,
// best match first. The score is the number of occurrences of the query
// tokens in the document; ties are ordered by id.
func (r *SearchRepository) SearchDocuments(ctx context.Context, index string, query models.SearchQuery) (hits []models.ScoredDocument, err error) {
	defer r.record("search", &err)

	tokens := tokenize(query.Text)
	if len(tokens) == 0 {
		return []models.ScoredDocument{}, nil
	}
	wanted := make(map[string]struct{}, len(tokens))
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := wanted[token]; ok {
			continue
		}
		wanted[token] = struct{}{}
		keys = append(keys, termKey(index, token))
	}

	ids, err := r.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	if len(ids) == 0 {
		return []models.ScoredDocument{}, nil
	}

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = docKey(index, id)
	}
	raws, err := r.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load search hits: %w", err)
	}

	hits = make([]models.ScoredDocument, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			// The id set and the document can diverge when a delete races a search.
			continue
		}
		var doc models.SearchDocument
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", ids[i], err)
		}
		hits = append(hits, models.ScoredDocument{SearchDocument: doc, Score: score(doc, wanted)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return lessID(hits[i].ID, hits[j].ID)
	})
	if query.Limit > 0 && len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}
	return hits, nil
}

func loadDocument(ctx context.Context, client stringGetter, index, id string) (*models.SearchDocument, error) {
	raw, err := client.Get(ctx, docKey(index, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get document %s: %w", id, err)
	}
	var doc models.SearchDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *SearchRepository) remove(ctx context.Context, index, id string) error {
	err := r.watch(ctx, docKey(index, id), func(tx *redis.Tx) error {
		doc, err := loadDocument(ctx, tx, index, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return nil
		}
		r.loaded(id)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for token := range documentTokens(*doc) {
				pipe.SRem(ctx, termKey(index, token), id)
			}
			pipe.Del(ctx, docKey(index, id))
			pipe.SRem(ctx, docsKey(index), id)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("remove document %s: %w", id, err)
	}
	return nil
}

// watch runs fn in an optimistic transaction on key, retrying while another
// client modifies the key before fn commits.
func (r *SearchRepository) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := r.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%s kept changing after %d attempts: %w", key, maxWatchAttempts, redis.TxFailedErr)
}

func (r *SearchRepository) loaded(id string) {
	if r.afterLoad != nil {
		r.afterLoad(id)
	}
}

func (r *SearchRepository) record(operation string, err *error) {
	if r.observer == nil {
		return
	}
	outcome := "success"
	if *err != nil {
		outcome = "error"
	}
	r.observer.RecordSearchOperation(operation, outcome)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func documentTokens(doc models.SearchDocument) map[string]int {
	counts := make(map[string]int)
	for _, field := range doc.Fields {
		if field.Date != nil {
			continue
		}
		for _, token := range tokenize(field.Text) {
			counts[token]++
		}
	}
	return counts
}

func score(doc models.SearchDocument, wanted map[string]struct{}) float64 {
	var total int
	for token, n := range documentTokens(doc) {
		if _, ok := wanted[token]; ok {
			total += n
		}
	}
	return float64(total)
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
