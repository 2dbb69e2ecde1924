// Package memory implements FixMemory (C5): a similarity-indexed store of
// (original_code -> fixed_code) exemplars with quality statistics, ported
// from memory_service.py. ChromaDB's vector index is replaced by a
// deterministic hashed bag-of-words embedding and a brute-force cosine
// scan over a gorm-backed metadata store — no Go vector-database or
// embedding-model client exists anywhere in the example pack, so this is
// an implementation-defined choice per spec.md §9 Open Question (c),
// documented in DESIGN.md.
package memory

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"apex-autofix/internal/logging"
)

const embeddingDim = 256
const defaultQualityPrior = 0.8
const defaultRetrievalThreshold = 3

// Record is the gorm-backed persisted form of a MemoryRecord (spec.md §3).
// The embedding is stored as a JSON-encoded float64 slice since gorm has no
// native vector column type in the pack's sqlite driver.
type Record struct {
	ID         string `gorm:"primaryKey"`
	Original   string
	Fixed      string
	ErrorKind  string `gorm:"index"`
	Method     string
	Metadata   string // JSON-encoded map[string]string
	Embedding  string // JSON-encoded []float64
	CreatedAt  time.Time
}

// QualityStat is the side table of retrieval/success counters.
type QualityStat struct {
	RecordID   string `gorm:"primaryKey"`
	Retrievals int
	Successes  int
	Failures   int
}

func (QualityStat) TableName() string { return "quality_stats" }

// SuccessRate computes the observed success rate, or 0 with no retrievals.
func (q QualityStat) SuccessRate() float64 {
	if q.Retrievals == 0 {
		return 0
	}
	return float64(q.Successes) / float64(q.Retrievals)
}

// Memory is the C5 component.
type Memory struct {
	db                 *gorm.DB
	mu                 sync.Mutex // single writer lock; readers use the db directly
	qualityPrior       float64
	retrievalThreshold int
}

// Open migrates and returns a Memory backed by db.
func Open(db *gorm.DB) (*Memory, error) {
	if err := db.AutoMigrate(&Record{}, &QualityStat{}); err != nil {
		return nil, err
	}
	return &Memory{db: db, qualityPrior: defaultQualityPrior, retrievalThreshold: defaultRetrievalThreshold}, nil
}

// recordID mirrors memory_service.py's _generate_id: md5(original:error_kind).
func recordID(original, errorKind string) string {
	sum := md5.Sum([]byte(original + ":" + errorKind))
	return hex.EncodeToString(sum[:])
}

// Store inserts or updates a fix exemplar, keyed by md5(original:error_kind)
// so exact duplicates update rather than duplicate (spec.md §4.5, §8).
func (m *Memory) Store(original, errorKind, fixed, method string, metadata map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := recordID(original, errorKind)
	meta, _ := json.Marshal(metadata)
	emb, _ := json.Marshal(embed(original))

	rec := Record{
		ID: id, Original: original, Fixed: fixed, ErrorKind: errorKind,
		Method: method, Metadata: string(meta), Embedding: string(emb), CreatedAt: time.Now().UTC(),
	}
	if err := m.db.Save(&rec).Error; err != nil {
		return "", err
	}
	return id, nil
}

// StoreWithValidation only persists the fix when validationSuccess is true,
// matching memory_service.py's store_fix_with_validation.
func (m *Memory) StoreWithValidation(original, errorKind, fixed, method string, metadata map[string]string, validationSuccess bool) (string, error) {
	if !validationSuccess {
		return "", nil
	}
	return m.Store(original, errorKind, fixed, method, metadata)
}

// SearchSimilar returns the k nearest records by cosine similarity of the
// query's embedding, filtered to errorKind.
func (m *Memory) SearchSimilar(query, errorKind string, k int) ([]Record, error) {
	var candidates []Record
	if err := m.db.Where("error_kind = ?", errorKind).Find(&candidates).Error; err != nil {
		return nil, err
	}
	scored := scoreBySimilarity(query, candidates)
	return topK(scored, k, func(s scoredRecord) float64 { return s.similarity }), nil
}

type scoredRecord struct {
	rec        Record
	similarity float64
	quality    float64
}

func scoreBySimilarity(query string, candidates []Record) []scoredRecord {
	qv := embed(query)
	out := make([]scoredRecord, 0, len(candidates))
	for _, c := range candidates {
		var cv []float64
		_ = json.Unmarshal([]byte(c.Embedding), &cv)
		out = append(out, scoredRecord{rec: c, similarity: cosineSimilarity(qv, cv)})
	}
	return out
}

func topK(scored []scoredRecord, k int, by func(scoredRecord) float64) []Record {
	sort.SliceStable(scored, func(i, j int) bool { return by(scored[i]) > by(scored[j]) })
	if k > len(scored) {
		k = len(scored)
	}
	if k < 0 {
		k = 0
	}
	out := make([]Record, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, scored[i].rec)
	}
	return out
}

// SearchWithQuality multiplies similarity by the recorded success rate
// (with a prior of qualityPrior below retrievalThreshold retrievals) and
// filters out results below minSuccessRate, per spec.md §4.5.
func (m *Memory) SearchWithQuality(query, errorKind string, k int, minSuccessRate float64) ([]Record, error) {
	var candidates []Record
	// fetch k*3 candidates by plain similarity first, mirroring the
	// original's over-fetch-then-rerank strategy.
	if err := m.db.Where("error_kind = ?", errorKind).Find(&candidates).Error; err != nil {
		return nil, err
	}
	scored := scoreBySimilarity(query, candidates)
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].similarity > scored[j].similarity })
	overfetch := k * 3
	if overfetch > len(scored) || overfetch <= 0 {
		overfetch = len(scored)
	}
	scored = scored[:overfetch]

	for i := range scored {
		stat := m.qualityStat(scored[i].rec.ID)
		rate := m.qualityPrior
		if stat.Retrievals >= m.retrievalThreshold {
			rate = stat.SuccessRate()
		}
		scored[i].quality = scored[i].similarity * rate
		if rate < minSuccessRate {
			scored[i].quality = -1 // filtered below
		}
	}
	filtered := scored[:0]
	for _, s := range scored {
		if s.quality >= 0 {
			filtered = append(filtered, s)
		}
	}
	return topK(filtered, k, func(s scoredRecord) float64 { return s.quality }), nil
}

func (m *Memory) qualityStat(recordID string) QualityStat {
	var q QualityStat
	if err := m.db.First(&q, "record_id = ?", recordID).Error; err != nil {
		return QualityStat{RecordID: recordID}
	}
	return q
}

// RecordOutcome updates the retrieval/success counters for a record after
// it has been used to produce a fix, so later SearchWithQuality calls
// reflect real-world outcomes.
func (m *Memory) RecordOutcome(recordID string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.qualityStat(recordID)
	q.RecordID = recordID
	q.Retrievals++
	if success {
		q.Successes++
	} else {
		q.Failures++
	}
	return m.db.Save(&q).Error
}

// Stats reports aggregate counts across the store.
func (m *Memory) Stats() (total int64, avgSuccessRate float64) {
	m.db.Model(&Record{}).Count(&total)
	var stats []QualityStat
	m.db.Find(&stats)
	if len(stats) == 0 {
		return total, 0
	}
	sum := 0.0
	for _, s := range stats {
		sum += s.SuccessRate()
	}
	return total, sum / float64(len(stats))
}

// Cleanup deletes records whose success rate is below minSuccessRate once
// they have been retrieved at least minUsage times, mirroring
// memory_service.py's cleanup_low_quality_examples.
func (m *Memory) Cleanup(minSuccessRate float64, minUsage int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats []QualityStat
	if err := m.db.Where("retrievals >= ?", minUsage).Find(&stats).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range stats {
		if s.SuccessRate() < minSuccessRate {
			if err := m.db.Delete(&Record{}, "id = ?", s.RecordID).Error; err != nil {
				logging.S().Warnw("fix memory cleanup: delete failed", "id", s.RecordID, "error", err)
				continue
			}
			m.db.Delete(&QualityStat{}, "record_id = ?", s.RecordID)
			removed++
		}
	}
	return removed, nil
}

// embed renders text as a deterministic, fixed-dimension hashed
// bag-of-words vector: each lowercased token contributes to a bucket
// determined by an FNV-style hash, giving stable, reproducible embeddings
// without any external model dependency.
func embed(text string) []float64 {
	v := make([]float64, embeddingDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		idx := hashToken(tok) % embeddingDim
		v[idx]++
	}
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

func hashToken(s string) int {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return int(h)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot // both vectors are already L2-normalized by embed
}
