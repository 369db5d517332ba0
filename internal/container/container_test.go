package container

import (
	"testing"

	"gomulm/adapters/battery"
	"gomulm/internal/config"
	"gomulm/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.MaxT.Family = "contrast"
	cfg.Inference.TwoTailed = false

	c, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c.RNG)
	assert.NotNil(t, c.Reader)
	assert.NotNil(t, c.Writer)
	assert.NotNil(t, c.Analysis)
	assert.NotNil(t, c.Splitter)
	assert.False(t, c.ContrastOptions().TwoTailed)

	require.NotNil(t, c.Referee)
	assert.Equal(t, battery.FamilyContrast, c.Referee.Config().Family)
	assert.Equal(t, 1000, c.Referee.Config().Permutations)
	assert.Equal(t, int64(42), c.Referee.Config().Seed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	cfg := config.Default()
	cfg.MaxT.Workers = 0
	_, err = New(cfg)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	cfg = config.Default()
	cfg.MaxT.Family = "stepdown"
	_, err = New(cfg)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}
