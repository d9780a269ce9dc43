package logger

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iurnickita/bogstatus/internal/logger/config"
)

func TestNewZapLog(t *testing.T) {
	zaplog, err := NewZapLog(config.Config{LogLevel: "debug"})
	require.NoError(t, err)
	require.True(t, zaplog.Core().Enabled(zapcore.DebugLevel))

	_, err = NewZapLog(config.Config{LogLevel: "loud"})
	require.Error(t, err)
}

func TestRequestLogMdlw(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	zaplog := zap.New(core)

	h := RequestLogMdlw(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "QP_1", string(body))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("ok"))
	}, zaplog)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/payments/QP_1/track", strings.NewReader("QP_1")))

	require.Equal(t, http.StatusAccepted, rec.Code)
	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "got incoming HTTP request", entries[0].Message)
	require.Equal(t, "QP_1", entries[0].ContextMap()["body"])
	require.Equal(t, "202", entries[1].ContextMap()["code"])
	require.Equal(t, "2", entries[1].ContextMap()["length"])
}
