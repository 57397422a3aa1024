package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gookit/color"

	"github.com/aeolun/chatwire/pkg/client"
	"github.com/aeolun/chatwire/pkg/protocol"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <serverHost> <serverPort> <udpPort>\n", os.Args[0])
		os.Exit(2)
	}

	host := os.Args[1]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil {
		color.Errorln("Invalid server port:", os.Args[2])
		os.Exit(2)
	}
	udpPort, err := strconv.Atoi(os.Args[3])
	if err != nil {
		color.Errorln("Invalid UDP port:", os.Args[3])
		os.Exit(2)
	}

	conn, err := client.Dial(fmt.Sprintf("%s:%d", host, port), udpPort)
	if err != nil {
		color.Errorln("Connection failed:", err)
		os.Exit(1)
	}
	defer conn.Close()

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: udpPort})
	if err != nil {
		color.Errorln("Failed to listen on UDP port:", err)
		os.Exit(1)
	}
	defer udpConn.Close()

	go receiveTransfers(udpConn)
	go renderIncoming(conn)

	readInput(conn, udpConn)
}

// renderIncoming prints server frames until the session ends.
func renderIncoming(conn *client.Connection) {
	for msg := range conn.Incoming {
		switch {
		case strings.HasPrefix(msg, "Error"):
			color.Redln(msg)
		case strings.HasPrefix(msg, "Welcome ") || strings.HasPrefix(msg, "Bye, "):
			color.Greenln(msg)
		default:
			fmt.Println(msg)
		}
	}
}

// receiveTransfers accepts inbound file transfers for the life of the
// process, dropping files into the working directory.
func receiveTransfers(udpConn *net.UDPConn) {
	for {
		file, err := client.ReceiveFile(udpConn, ".")
		if err != nil {
			return
		}
		color.Cyanln(fmt.Sprintf("Received file '%s' from: %s", file.Name, file.Sender))
	}
}

// readInput forwards stdin lines to the server, handling /p2pvideo locally
// over the UDP side channel.
func readInput(conn *client.Connection, udpConn *net.UDPConn) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-conn.Done:
			fmt.Println("Connection closed")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}

			cmd, err := protocol.ParseCommand(line)
			if err == nil && cmd.Action == "/p2pvideo" {
				sendVideo(conn, cmd.Args)
			}
			if err := conn.Send(line); err != nil {
				color.Errorln("Send failed:", err)
				return
			}
		}
	}
}

// sendVideo resolves the target from the last /activeuser listing and
// streams the file peer to peer.
func sendVideo(conn *client.Connection, args []string) {
	if len(args) != 2 {
		color.Redln("Error:/p2pvideo: check arguments")
		return
	}

	target, path := args[0], args[1]
	peer, ok := conn.FindPeer(target)
	if !ok {
		color.Redln(target + " is not active")
		return
	}

	if err := client.SendFile(path, conn.Username(), peer); err != nil {
		color.Redln("Error:/p2pvideo: " + err.Error())
		return
	}
	color.Greenln(fmt.Sprintf("%s has been uploaded", path))
}
