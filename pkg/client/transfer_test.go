package client

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTransferRoundTrip(t *testing.T) {
	recv := listenUDP(t)
	peer := PeerEndpoint{Host: "127.0.0.1", UDPPort: recv.LocalAddr().(*net.UDPAddr).Port}

	// Larger than one chunk and not chunk-aligned.
	content := bytes.Repeat([]byte("chatwire"), 500)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "clip.mov")
	require.NoError(t, os.WriteFile(src, content, 0644))

	done := make(chan error, 1)
	var got ReceivedFile
	dstDir := t.TempDir()
	go func() {
		var err error
		got, err = ReceiveFile(recv, dstDir)
		done <- err
	}()

	require.NoError(t, SendFile(src, "alice", peer))
	require.NoError(t, <-done)

	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "clip.mov", got.Name)
	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestTransferEmptyFile(t *testing.T) {
	recv := listenUDP(t)
	peer := PeerEndpoint{Host: "127.0.0.1", UDPPort: recv.LocalAddr().(*net.UDPAddr).Port}

	src := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(src, nil, 0644))

	done := make(chan error, 1)
	var got ReceivedFile
	dstDir := t.TempDir()
	go func() {
		var err error
		got, err = ReceiveFile(recv, dstDir)
		done <- err
	}()

	require.NoError(t, SendFile(src, "bob", peer))
	require.NoError(t, <-done)

	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestTransferStripsPathComponents(t *testing.T) {
	sender, filename, err := parseTransferHeader("USERNAME=mallory&FILENAME=../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "mallory", sender)
	assert.Equal(t, "passwd", filename)
}

func TestTransferHeaderValidation(t *testing.T) {
	for _, header := range []string{
		"",
		"USERNAME=alice",
		"FILENAME=clip.mov",
		"USERNAME=&FILENAME=clip.mov",
		"garbage",
	} {
		_, _, err := parseTransferHeader(header)
		assert.Error(t, err, "header %q", header)
	}
}

func TestSendFileMissingSource(t *testing.T) {
	err := SendFile(filepath.Join(t.TempDir(), "nope.bin"), "alice", PeerEndpoint{Host: "127.0.0.1", UDPPort: 1})
	assert.Error(t, err)
}
