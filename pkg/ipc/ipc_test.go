// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
	switch method {
	case "register":
		return map[string]any{"ok": true}, nil
	case "refreshAll":
		return nil, &RPCError{Code: CodeOperationFailed, Message: "refresh failed"}
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "unknown method: " + method}
	}
}

func TestServerRoundTripsRegister(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	srv, err := Listen(socketPath, echoHandler, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	client, err := Dial(socketPath, 500*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	raw, err := client.Call(context.Background(), "register", map[string]string{"repoID": "r1", "repoPath": "/tmp/r1"}, 0)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, true, result["ok"])
}

func TestServerRejectsUnknownMethod(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	srv, err := Listen(socketPath, echoHandler, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	client, err := Dial(socketPath, 500*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(context.Background(), "notARealMethod", nil, 0)
	require.Error(t, err)
}

func TestServerPropagatesHandlerError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	srv, err := Listen(socketPath, echoHandler, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	client, err := Dial(socketPath, 500*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(context.Background(), "refreshAll", nil, 0)
	require.Error(t, err)
}

func TestDialFailsWithNoServerListening(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	_, err := Dial(socketPath, 50*time.Millisecond)
	require.Error(t, err)
}

func TestListenRemovesStaleSocketFile(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)

	srv1, err := Listen(socketPath, echoHandler, nil)
	require.NoError(t, err)
	go srv1.Serve()
	require.NoError(t, srv1.Close())

	// Close unlinks the socket; put a stale file in its place, as a crashed
	// hub process would leave behind.
	require.NoError(t, os.WriteFile(socketPath, nil, 0o600))

	srv2, err := Listen(socketPath, echoHandler, nil)
	require.NoError(t, err)
	defer srv2.Close()
}
