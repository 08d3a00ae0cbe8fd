package encoder

import (
	"testing"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

func TestConfigDims(t *testing.T) {
	cfg := DefaultConfig(2048, 12345)
	if got, want := cfg.Dims(), 2048+8; got != want {
		t.Fatalf("Dims() = %d, want %d", got, want)
	}
}

func TestTransformDeterministic(t *testing.T) {
	cfg := DefaultConfig(256, 99)
	enc := New(cfg)
	row := domain.FeatureRow{
		TxnID:             1,
		MerchantCanonical: "amazon",
		Tokens:            []string{"amazon", "prime", "video"},
		AbsAmount:         42.50,
		Channel:           domain.ChannelOnline,
		Dow:               3,
		IsWeekend:         false,
		IsSubscription:    true,
	}

	v1 := enc.Transform(row)
	v2 := enc.Transform(row)
	if len(v1) != cfg.Dims() {
		t.Fatalf("len(vec) = %d, want %d", len(v1), cfg.Dims())
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("Transform not deterministic at index %d: %v vs %v", i, v1[i], v2[i])
		}
	}
}

func TestTransformNumericTail(t *testing.T) {
	cfg := DefaultConfig(64, 1)
	enc := New(cfg)
	row := domain.FeatureRow{
		AbsAmount:      0,
		Channel:        domain.ChannelPOS,
		Dow:            6,
		IsWeekend:      true,
		IsSubscription: false,
	}
	vec := enc.Transform(row)
	base := cfg.NumHashBuckets
	if vec[base] != 0 {
		t.Errorf("log1p(0) tail = %v, want 0", vec[base])
	}
	if vec[base+1] != 1.0 {
		t.Errorf("dow/6 tail = %v, want 1.0", vec[base+1])
	}
	if vec[base+2] != 1 {
		t.Errorf("is_weekend one-hot = %v, want 1", vec[base+2])
	}
	if vec[base+3] != 0 {
		t.Errorf("is_subscription one-hot = %v, want 0", vec[base+3])
	}
	posIdx := base + 4
	if vec[posIdx] != 1 {
		t.Errorf("pos channel one-hot = %v, want 1", vec[posIdx])
	}
}

func TestTransformUnknownChannelFallsBackToUnknownSlot(t *testing.T) {
	cfg := DefaultConfig(64, 1)
	enc := New(cfg)
	row := domain.FeatureRow{Channel: domain.Channel("bogus")}
	vec := enc.Transform(row)
	unknownIdx := cfg.NumHashBuckets + 4 + 3
	if vec[unknownIdx] != 1 {
		t.Errorf("unexpected channel should fall back to unknown slot, got %v", vec[unknownIdx])
	}
}

func TestValidateDims(t *testing.T) {
	cfg := DefaultConfig(16, 1)
	enc := New(cfg)
	good := make([]float64, cfg.Dims())
	if err := enc.ValidateDims(good); err != nil {
		t.Errorf("ValidateDims() unexpected error: %v", err)
	}
	bad := make([]float64, cfg.Dims()-1)
	if err := enc.ValidateDims(bad); err == nil {
		t.Error("ValidateDims() expected error for mismatched length")
	}
}

func TestBucketClipping(t *testing.T) {
	cfg := DefaultConfig(4, 1)
	enc := New(cfg)
	tokens := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		tokens = append(tokens, "samebucketprobe")
	}
	row := domain.FeatureRow{Tokens: tokens}
	vec := enc.Transform(row)
	for _, v := range vec[:cfg.NumHashBuckets] {
		if v > maxTokenCount {
			t.Fatalf("bucket count %v exceeds clip %d", v, maxTokenCount)
		}
	}
}
