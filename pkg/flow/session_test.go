package flow

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenrelay/tokenrelay/pkg/types"
)

func TestSession_SetTokenFirstWriterWins(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)

	require.True(t, sess.SetToken("abc.def.ghi", types.TokenSourceNetwork))
	assert.False(t, sess.SetToken("later-token", types.TokenSourceNetwork), "second write must be a no-op")
	assert.False(t, sess.SetToken("storage-token", types.TokenSourceLocalStorage))

	token := sess.Token()
	require.NotNil(t, token)
	assert.Equal(t, "abc.def.ghi", token.Value)
	assert.Equal(t, types.TokenSourceNetwork, token.Source)
}

func TestSession_SetTokenRejectsEmpty(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)

	assert.False(t, sess.SetToken("", types.TokenSourceNetwork))
	assert.Nil(t, sess.Token())
}

func TestSession_CleanupIdempotent(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)

	// No page was ever opened; both calls must be safe no-ops.
	sess.Cleanup()
	sess.Cleanup()
}

func TestSession_CloseReleasesOnce(t *testing.T) {
	released := 0
	sess := newSession(zerolog.Nop(), nil, func() { released++ }, true)

	sess.Close()
	sess.Close()

	assert.Equal(t, 1, released, "release must run exactly once")
}

func TestSession_CleanupAfterCloseIsNoop(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, func() {}, true)

	sess.Close()
	sess.Cleanup()
}
