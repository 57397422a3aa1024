package client

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// chunkSize is the UDP payload size for file transfer packets.
const chunkSize = 1024

// Transfer framing: one header datagram "USERNAME=<sender>&FILENAME=<name>",
// then the file in chunkSize datagrams, then one empty datagram as the end
// marker. No acknowledgements; this is a best-effort side channel between
// two clients that just listed each other as active.

// ReceivedFile describes one completed inbound transfer.
type ReceivedFile struct {
	Path   string
	Name   string
	Sender string
}

// SendFile streams the named file to a peer's UDP endpoint from its own
// ephemeral socket.
func SendFile(path, sender string, peer PeerEndpoint) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", peer.Host, peer.UDPPort))
	if err != nil {
		return fmt.Errorf("resolve peer endpoint: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dial peer: %w", err)
	}
	defer conn.Close()

	header := fmt.Sprintf("USERNAME=%s&FILENAME=%s", sender, filepath.Base(path))
	if _, err := conn.Write([]byte(header)); err != nil {
		return fmt.Errorf("send header: %w", err)
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return fmt.Errorf("send chunk: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	// Empty datagram marks the end of the transfer.
	if _, err := conn.Write(nil); err != nil {
		return fmt.Errorf("send end marker: %w", err)
	}
	return nil
}

// ReceiveFile blocks until a transfer arrives on conn and writes it into
// dir. The filename comes from the header; any path components a peer
// smuggles in are stripped. Once the header arrives the rest of the
// transfer must keep moving or the receive times out.
func ReceiveFile(conn *net.UDPConn, dir string) (ReceivedFile, error) {
	buf := make([]byte, chunkSize)

	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return ReceivedFile{}, fmt.Errorf("receive header: %w", err)
	}

	sender, filename, err := parseTransferHeader(string(buf[:n]))
	if err != nil {
		return ReceivedFile{}, err
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return ReceivedFile{}, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	defer conn.SetReadDeadline(time.Time{})
	for {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return ReceivedFile{}, fmt.Errorf("receive chunk: %w", err)
		}
		if n == 0 {
			break
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return ReceivedFile{}, fmt.Errorf("write %s: %w", path, err)
		}
	}

	return ReceivedFile{Path: path, Name: filename, Sender: sender}, nil
}

func parseTransferHeader(header string) (sender, filename string, err error) {
	for _, part := range strings.Split(header, "&") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "USERNAME":
			sender = value
		case "FILENAME":
			filename = filepath.Base(value)
		}
	}
	if sender == "" || filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", "", fmt.Errorf("malformed transfer header %q", header)
	}
	return sender, filename, nil
}
