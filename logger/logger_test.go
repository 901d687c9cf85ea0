package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	t.Cleanup(func() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
}

func TestSetup(t *testing.T) {
	restore(t)

	buf := &bytes.Buffer{}
	require.NoError(t, Setup("warn", false, buf))

	log.Info().Msg("hidden")
	log.Warn().Str("room", "r1").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "r1", line["room"])
	assert.Equal(t, "shown", line["message"])
	assert.Contains(t, line, "time")
}

func TestSetup_Pretty(t *testing.T) {
	restore(t)

	buf := &bytes.Buffer{}
	require.NoError(t, Setup("debug", true, buf))
	log.Debug().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestSetup_BadLevel(t *testing.T) {
	assert.Error(t, Setup("loud", false, &bytes.Buffer{}))
}

func TestMiddleware(t *testing.T) {
	restore(t)
	gin.SetMode(gin.TestMode)

	buf := &bytes.Buffer{}
	require.NoError(t, Setup("info", false, buf))

	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/rooms/:roomid", func(ctx *gin.Context) {
		ctx.String(http.StatusNotFound, "room-not-found")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/rooms/abc", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/api/rooms/:roomid", line["path"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])
}
