package flow

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenrelay/tokenrelay/pkg/types"
)

func TestExtractToken_RawJWT(t *testing.T) {
	token, ok := extractToken("eyJhbGciOiJIUzI1NiJ9.payload.sig")
	require.True(t, ok)
	assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9.payload.sig", token)
}

func TestExtractToken_RawJWTNotParsedAsJSON(t *testing.T) {
	// A value with the JWT prefix is returned verbatim even when it would
	// also parse as JSON.
	token, ok := extractToken("eyJ-not-actually-base64")
	require.True(t, ok)
	assert.Equal(t, "eyJ-not-actually-base64", token)
}

func TestExtractToken_JSONFieldPriority(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "access_token wins over id_token and token",
			value: `{"access_token":"a","id_token":"b","token":"c"}`,
			want:  "a",
		},
		{
			name:  "id_token wins over token",
			value: `{"id_token":"b","token":"c"}`,
			want:  "b",
		},
		{
			name:  "token as last resort",
			value: `{"token":"c","user":"someone"}`,
			want:  "c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := extractToken(tt.value)
			require.True(t, ok)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestExtractToken_NoToken(t *testing.T) {
	for _, value := range []string{
		"",
		"plain string, not json",
		`{"theme":"dark"}`,
		`["eyJ-inside-an-array"]`,
		"12345",
	} {
		_, ok := extractToken(value)
		assert.False(t, ok, "value %q should not yield a token", value)
	}
}

func TestScanStorage_FirstKeyWins(t *testing.T) {
	entries := [][2]string{
		{"theme", "dark"},
		{"auth", `{"access_token":"first"}`},
		{"other-auth", `{"access_token":"second"}`},
	}

	token, ok := scanStorage(entries)
	require.True(t, ok)
	assert.Equal(t, "first", token)
}

func TestScanStorage_Empty(t *testing.T) {
	_, ok := scanStorage(nil)
	assert.False(t, ok)

	_, ok = scanStorage([][2]string{{"a", "b"}})
	assert.False(t, ok)
}

func fakeStorageDump(local, session [][2]string) func(area string) ([][2]string, error) {
	return func(area string) ([][2]string, error) {
		switch area {
		case "localStorage":
			return local, nil
		case "sessionStorage":
			return session, nil
		}
		return nil, errors.New("unknown storage area " + area)
	}
}

func TestCaptureFromStorage_LocalWinsOverSession(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)
	sess.storageDump = fakeStorageDump(
		[][2]string{{"auth", `{"access_token":"from-local"}`}},
		[][2]string{{"auth", `{"access_token":"from-session"}`}},
	)

	sess.captureFromStorage()

	token := sess.Token()
	require.NotNil(t, token)
	assert.Equal(t, "from-local", token.Value)
	assert.Equal(t, types.TokenSourceLocalStorage, token.Source)
}

func TestCaptureFromStorage_FallsBackToSessionStorage(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)
	sess.storageDump = fakeStorageDump(
		[][2]string{{"theme", "dark"}},
		[][2]string{{"auth", `{"access_token":"from-session"}`}},
	)

	sess.captureFromStorage()

	token := sess.Token()
	require.NotNil(t, token)
	assert.Equal(t, "from-session", token.Value)
	assert.Equal(t, types.TokenSourceSessionStorage, token.Source)
}

func TestCaptureFromStorage_LocalDumpFailureFallsThrough(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)
	sess.storageDump = func(area string) ([][2]string, error) {
		if area == "localStorage" {
			return nil, errors.New("execution context destroyed")
		}
		return [][2]string{{"auth", `{"id_token":"from-session"}`}}, nil
	}

	sess.captureFromStorage()

	token := sess.Token()
	require.NotNil(t, token)
	assert.Equal(t, "from-session", token.Value)
	assert.Equal(t, types.TokenSourceSessionStorage, token.Source)
}

func TestCaptureFromStorage_SkipsWhenNetworkAlreadyCaptured(t *testing.T) {
	sess := newSession(zerolog.Nop(), nil, nil, true)
	require.True(t, sess.SetToken("net-token", types.TokenSourceNetwork))

	dumped := false
	sess.storageDump = func(string) ([][2]string, error) {
		dumped = true
		return nil, nil
	}

	sess.captureFromStorage()

	assert.False(t, dumped, "storage must not be scanned once a token is captured")
	token := sess.Token()
	require.NotNil(t, token)
	assert.Equal(t, types.TokenSourceNetwork, token.Source)
}
