package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidGameMode(t *testing.T) {
	assert.True(t, IsValidGameMode(GameModeClassic))
	assert.True(t, IsValidGameMode(GameModeSurvival))
	assert.True(t, IsValidGameMode(GameModeTeams))
	assert.True(t, IsValidGameMode(GameModeHangman))
	assert.False(t, IsValidGameMode("battle_royale"))
	assert.False(t, IsValidGameMode(""))
}

func TestDefaultModeConfig(t *testing.T) {
	assert.Equal(t, ModeConfig{}, DefaultModeConfig(GameModeClassic))
	assert.Equal(t, ModeConfig{Lives: DefaultSurvivalLives}, DefaultModeConfig(GameModeSurvival))
	assert.Equal(t, ModeConfig{TeamCount: MinTeamCount}, DefaultModeConfig(GameModeTeams))

	hangman := DefaultModeConfig(GameModeHangman)
	assert.Equal(t, DefaultHangmanLives, hangman.Lives)
	assert.True(t, hangman.IgnoreAccents)
}

func TestModeConfigValidate(t *testing.T) {
	require.NoError(t, ModeConfig{}.Validate(GameModeClassic))
	require.NoError(t, ModeConfig{Lives: 3}.Validate(GameModeSurvival))
	require.NoError(t, ModeConfig{TeamCount: 4}.Validate(GameModeTeams))
	require.NoError(t, ModeConfig{Lives: 6}.Validate(GameModeHangman))

	assert.Error(t, ModeConfig{}.Validate("unknown"))
	assert.Error(t, ModeConfig{Lives: 0}.Validate(GameModeSurvival))
	assert.Error(t, ModeConfig{Lives: MaxLives + 1}.Validate(GameModeSurvival))
	assert.Error(t, ModeConfig{TeamCount: 1}.Validate(GameModeTeams))
	assert.Error(t, ModeConfig{TeamCount: MaxTeamCount + 1}.Validate(GameModeTeams))
	assert.Error(t, ModeConfig{Lives: 0}.Validate(GameModeHangman))
}

func TestCompareOptionsFor(t *testing.T) {
	// Только hangman включает нормализацию сравнения
	cfg := ModeConfig{IgnoreAccents: true}

	opts := cfg.CompareOptionsFor(GameModeHangman)
	assert.True(t, opts.CaseInsensitive)
	assert.True(t, opts.IgnoreAccents)

	assert.Equal(t, CompareOptions{}, cfg.CompareOptionsFor(GameModeClassic))
	assert.Equal(t, CompareOptions{}, cfg.CompareOptionsFor(GameModeSurvival))
}

func TestModeConfigScanRoundTrip(t *testing.T) {
	src := ModeConfig{Lives: 3, IgnoreAccents: true}
	raw, err := src.Value()
	require.NoError(t, err)

	var dst ModeConfig
	require.NoError(t, dst.Scan(raw))
	assert.Equal(t, src, dst)
}
