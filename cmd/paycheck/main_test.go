package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/bogstatus/internal/model"
	"github.com/iurnickita/bogstatus/internal/poller"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusCmd(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/quick-payment/payments/bog/status/QP_abc123", r.URL.Path)
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"status":"PENDING"}`))
			return
		}
		w.Write([]byte(`{"status":"PAID"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "status", "QP_abc123", "--base-url", srv.URL, "--interval", "5ms")
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())

	lines := strings.Split(strings.TrimSpace(out), "\n")
	var last stateLine
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	require.False(t, last.Loading)
	require.Equal(t, "PAID", last.Outcome)
	require.Equal(t, 3, last.Attempts)
}

func TestStatusCmdTakingLonger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":null,"status":"PENDING"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "status", "TOUR_ORDER_9", "--base-url", srv.URL, "--interval", "1ms", "--max-attempts", "3")
	require.ErrorIs(t, err, poller.ErrTakingLonger)
}

func TestStatusCmdUnknownKind(t *testing.T) {
	_, err := execute(t, "status", "BOAT_1")
	require.ErrorIs(t, err, model.ErrUnknownOrderKind)
}

func TestKindCmd(t *testing.T) {
	out, err := execute(t, "kind", "INS_42")
	require.NoError(t, err)
	require.Equal(t, "insurance /api/insurance/payments/bog/status/INS_42\n", out)
}
