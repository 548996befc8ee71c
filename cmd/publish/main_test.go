package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomrelay/domain"
)

func TestBuildEnvelope(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	env, err := buildEnvelope(
		"550e8400-e29b-41d4-a716-446655440000",
		"550e8400-e29b-41d4-a716-446655440002",
		"550e8400-e29b-41d4-a716-446655440001",
		"hi", now)
	require.NoError(t, err)

	assert.Equal(t, domain.EventRoomMessageCreated, env.Type)
	assert.Equal(t, int64(1700000000000), env.Ts)
	require.NotNil(t, env.RoomID)
	assert.Contains(t, string(env.Payload), `"body":"hi"`)
}

func TestBuildEnvelope_RequiresIDs(t *testing.T) {
	_, err := buildEnvelope("", "", "", "hi", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidEnvelope)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
