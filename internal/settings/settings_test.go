package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"trend-scan/models"
)

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if store == nil {
		t.Fatal("NewStore() returned nil store")
	}

	if store.filePath != filepath.Join(tmpDir, "settings.json") {
		t.Errorf("NewStore() filePath = %v, want %v", store.filePath, filepath.Join(tmpDir, "settings.json"))
	}

	got := store.Get()
	if got.ATRMultiplier != 2.0 {
		t.Errorf("Get() ATRMultiplier = %v, want the 2.0 default", got.ATRMultiplier)
	}
}

func TestUpdatePersistsAcrossStores(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	tuned := models.DefaultAlgorithmSettings()
	tuned.ATRMultiplier = 3.0
	tuned.HigherTimeframe = models.Interval30m
	tuned.ExtendedHours = false

	if err := store.Update(tuned); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// A second store over the same directory sees the persisted values.
	reopened, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}

	got := reopened.Get()
	if got.ATRMultiplier != 3.0 {
		t.Errorf("reopened ATRMultiplier = %v, want 3.0", got.ATRMultiplier)
	}
	if got.HigherTimeframe != models.Interval30m {
		t.Errorf("reopened HigherTimeframe = %v, want 30m", got.HigherTimeframe)
	}
	if got.ExtendedHours {
		t.Error("reopened ExtendedHours = true, want false")
	}
}

func TestUpdateRejectsInvalidSettings(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	bad := models.DefaultAlgorithmSettings()
	bad.VolatilityFilter = 9.0

	if err := store.Update(bad); err == nil {
		t.Fatal("Update() accepted volatility_filter = 9.0, want range error")
	}

	got := store.Get()
	if got.VolatilityFilter != 2.5 {
		t.Errorf("VolatilityFilter after rejected update = %v, want untouched 2.5", got.VolatilityFilter)
	}
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "settings.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	store, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	got := store.Get()
	if got.ATRMultiplier != 2.0 {
		t.Errorf("ATRMultiplier = %v, want the 2.0 default after corrupt load", got.ATRMultiplier)
	}
}

func TestInvalidPersistedValuesFallBackToDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	bad := models.DefaultAlgorithmSettings()
	bad.ATRMultiplier = 99.0
	data, _ := json.Marshal(bad)
	if err := os.WriteFile(filepath.Join(tmpDir, "settings.json"), data, 0600); err != nil {
		t.Fatalf("failed to write settings file: %v", err)
	}

	store, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	got := store.Get()
	if got.ATRMultiplier != 2.0 {
		t.Errorf("ATRMultiplier = %v, want the 2.0 default after invalid load", got.ATRMultiplier)
	}
}

func TestReset(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir, models.DefaultAlgorithmSettings())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	tuned := models.DefaultAlgorithmSettings()
	tuned.FOMOFilter = 2.0
	if err := store.Update(tuned); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	got := store.Get()
	if got.FOMOFilter != 1.0 {
		t.Errorf("FOMOFilter after Reset = %v, want the 1.0 default", got.FOMOFilter)
	}
}

func TestOverridesApply(t *testing.T) {
	base := models.DefaultAlgorithmSettings()

	atr := 4.0
	htf := models.Interval1h
	extended := false
	overrides := Overrides{
		ATRMultiplier:   &atr,
		HigherTimeframe: &htf,
		ExtendedHours:   &extended,
	}

	merged := overrides.Apply(base)

	if merged.ATRMultiplier != 4.0 {
		t.Errorf("merged ATRMultiplier = %v, want 4.0", merged.ATRMultiplier)
	}
	if merged.HigherTimeframe != models.Interval1h {
		t.Errorf("merged HigherTimeframe = %v, want 1h", merged.HigherTimeframe)
	}
	if merged.ExtendedHours {
		t.Error("merged ExtendedHours = true, want false")
	}
	// Untouched fields keep the base values.
	if merged.VolatilityFilter != base.VolatilityFilter {
		t.Errorf("merged VolatilityFilter = %v, want base %v", merged.VolatilityFilter, base.VolatilityFilter)
	}
	if base.ATRMultiplier != 2.0 {
		t.Errorf("base mutated to %v, want 2.0", base.ATRMultiplier)
	}
}

func TestOverridesEmptyKeepsBase(t *testing.T) {
	base := models.DefaultAlgorithmSettings()
	merged := Overrides{}.Apply(base)

	if merged != base {
		t.Errorf("empty overrides changed settings: %+v != %+v", merged, base)
	}
}
