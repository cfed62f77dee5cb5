package mvconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mvtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("block_size: 8192\nepsilon: 0.05\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.BlockSize)
	assert.Equal(t, 0.05, cfg.Epsilon)
	assert.Equal(t, Default().MinCapacityRatio, cfg.MinCapacityRatio)
	assert.Equal(t, "fifo", cfg.QueueFactory)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsRatioOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.MinCapacityRatio = 1.5
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsStrongVersionConditionViolation(t *testing.T) {
	cfg := Default()
	cfg.MinCapacityRatio = 0.9 // k ~= 1.11, needs >= ~1.8 at epsilon 0.1
	assert.Error(t, Validate(cfg))
}

func TestValidateAcceptsDefault(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}
