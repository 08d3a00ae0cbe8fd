// Package encoder implements the deterministic FeatureRow-to-vector
// transform shared by training and serving. It hashes tokens into a fixed
// bucket count (grounded on the fixed-width numeric vector the teacher's
// inference package expects -- internal/inference/onnx.go's NumFeatures
// constant and rowToFeatures conversion, generalized from a static column
// list to a configurable hashed bag).
package encoder

import (
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

// DefaultChannelVocab is the fixed one-hot vocabulary for Channel.
var DefaultChannelVocab = []string{
	string(domain.ChannelPOS),
	string(domain.ChannelOnline),
	string(domain.ChannelTransfer),
	string(domain.ChannelUnknown),
}

// maxTokenCount clips a hashed bucket's accumulated token count, per spec's
// "clipped at 8" rule.
const maxTokenCount = 8

// Config is the serializable configuration a registry entry pins down;
// transform's output dimensionality is a pure function of Config.
type Config struct {
	NumHashBuckets int      `json:"num_hash_buckets"`
	HashSeed       uint64   `json:"hash_seed"`
	ChannelVocab   []string `json:"channel_vocab"`
}

// DefaultConfig returns a Config using DefaultChannelVocab.
func DefaultConfig(numHashBuckets int, hashSeed uint64) Config {
	vocab := make([]string, len(DefaultChannelVocab))
	copy(vocab, DefaultChannelVocab)
	return Config{NumHashBuckets: numHashBuckets, HashSeed: hashSeed, ChannelVocab: vocab}
}

// Dims returns the output vector length for this Config:
// hash buckets + 2 numeric (log1p(amount), dow/6) + 2 boolean one-hot
// (is_weekend, is_subscription) + one-hot over the channel vocabulary.
func (c Config) Dims() int {
	return c.NumHashBuckets + 2 + 2 + len(c.ChannelVocab)
}

// Encoder is a stateless transform bound to one Config.
type Encoder struct {
	cfg        Config
	channelIdx map[string]int
}

// New builds an Encoder for the given Config.
func New(cfg Config) *Encoder {
	idx := make(map[string]int, len(cfg.ChannelVocab))
	for i, c := range cfg.ChannelVocab {
		idx[c] = i
	}
	return &Encoder{cfg: cfg, channelIdx: idx}
}

// Config returns the Config this Encoder was built with.
func (e *Encoder) Config() Config { return e.cfg }

// Transform converts a FeatureRow into a dense float64 vector. It is a pure
// function of row and the Encoder's Config: same inputs always produce a
// bit-identical vector, across runs and processes.
func (e *Encoder) Transform(row domain.FeatureRow) []float64 {
	vec := make([]float64, e.cfg.Dims())

	hashed := append([]string{}, row.Tokens...)
	if row.MerchantCanonical != "" {
		hashed = append(hashed, row.MerchantCanonical)
	}
	for _, tok := range hashed {
		bucket := e.bucket(tok)
		if vec[bucket] < maxTokenCount {
			vec[bucket]++
		}
	}

	base := e.cfg.NumHashBuckets
	vec[base] = math.Log1p(row.AbsAmount)
	vec[base+1] = float64(row.Dow) / 6.0
	vec[base+2] = boolToFloat(row.IsWeekend)
	vec[base+3] = boolToFloat(row.IsSubscription)

	channelBase := base + 4
	if idx, ok := e.channelIdx[string(row.Channel)]; ok {
		vec[channelBase+idx] = 1
	} else if idx, ok := e.channelIdx[string(domain.ChannelUnknown)]; ok {
		vec[channelBase+idx] = 1
	}

	return vec
}

// bucket hashes a token into [0, NumHashBuckets) using xxhash seeded by
// mixing HashSeed into the input, since xxhash.Sum64 has no streaming reseed
// API. Mixing the seed into the bytes keeps the hash stable and deterministic
// for a fixed Config, which is all the point-in-time/determinism invariants
// require.
func (e *Encoder) bucket(token string) int {
	h := xxhash.New()
	var seedBuf [8]byte
	for i := 0; i < 8; i++ {
		seedBuf[i] = byte(e.cfg.HashSeed >> (8 * i))
	}
	h.Write(seedBuf[:])
	h.Write([]byte(token))
	return int(h.Sum64() % uint64(e.cfg.NumHashBuckets))
}

// ValidateDims returns domain.ErrEncoderMismatch if vec's length does not
// match this Encoder's configured dimensionality.
func (e *Encoder) ValidateDims(vec []float64) error {
	if len(vec) != e.cfg.Dims() {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrEncoderMismatch, e.cfg.Dims(), len(vec))
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SortedChannelVocab returns a copy of the vocabulary in stable sorted order,
// used when constructing a Config deterministically from a set.
func SortedChannelVocab(vocab map[string]bool) []string {
	out := make([]string, 0, len(vocab))
	for k := range vocab {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
