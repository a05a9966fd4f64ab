package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"rag-backend/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
	keyDimension = []byte("dimension")
	keyName      = []byte("name")
)

// Collection is one named partition of the index, backed by its own bbolt
// file. All vectors are cached in memory; search is brute-force cosine.
type Collection struct {
	name string
	path string
	db   *bbolt.DB

	mu        sync.RWMutex
	dimension int
	entries   []entry
	refs      int
}

type entry struct {
	chunk  models.Chunk
	vector []float32
}

type storedChunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"t"`
	Metadata map[string]string `json:"m,omitempty"`
	Vector   []float32         `json:"v"`
}

func openCollection(path, name string, opts *bbolt.Options) (*Collection, error) {
	db, err := bbolt.Open(path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketChunks); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketChunks, err)
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}
		if meta.Get(keyName) == nil {
			return meta.Put(keyName, []byte(name))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Collection{name: name, path: path, db: db}
	if err := c.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return c, nil
}

// load reads every stored chunk into memory in insertion order.
func (c *Collection) load() error {
	return c.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucketMeta).Get(keyDimension); len(raw) == 8 {
			c.dimension = int(binary.BigEndian.Uint64(raw))
		}
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			c.entries = append(c.entries, entry{
				chunk:  models.Chunk{Text: stored.Text, Metadata: stored.Metadata},
				vector: stored.Vector,
			})
			return nil
		})
	})
}

func (c *Collection) Name() string {
	return c.name
}

// Count returns the number of stored chunks.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// AddChunks stores chunks with their embeddings in a single transaction.
// Either every chunk is written or none is.
func (c *Collection) AddChunks(chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dimension := c.dimension
	if dimension == 0 {
		dimension = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dimension {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, dimension, len(v))
		}
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for i, chunk := range chunks {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(storedChunk{
				ID:       uuid.NewString(),
				Text:     chunk.Text,
				Metadata: chunk.Metadata,
				Vector:   vectors[i],
			})
			if err != nil {
				return err
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return err
			}
		}
		dim := make([]byte, 8)
		binary.BigEndian.PutUint64(dim, uint64(dimension))
		return tx.Bucket(bucketMeta).Put(keyDimension, dim)
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunks into %s: %w", c.name, err)
	}

	c.dimension = dimension
	for i, chunk := range chunks {
		c.entries = append(c.entries, entry{chunk: chunk, vector: vectors[i]})
	}
	return nil
}

// Search returns up to k chunks ranked by cosine similarity to query. Equal
// scores keep insertion order. k <= 0 returns nothing.
func (c *Collection) Search(query []float32, k int) ([]models.ScoredChunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if k <= 0 || len(c.entries) == 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(query) != c.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", c.dimension, len(query))
	}

	results := make([]models.ScoredChunk, len(c.entries))
	for i, e := range c.entries {
		results[i] = models.ScoredChunk{Chunk: e.chunk, Score: cosineSimilarity(query, e.vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
