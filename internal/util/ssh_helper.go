package util

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// outboundIP determines the machine's preferred outbound IP by opening a UDP
// "connection" to a public address. No packets are actually sent.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}

// PrintSSHTunnelInstructions prints the SSH command needed to forward the
// local OAuth callback port when the login runs on a remote, headless machine.
func PrintSSHTunnelInstructions(port int) {
	host, err := outboundIP()
	if err != nil {
		log.Debugf("outbound IP detection failed: %v", err)
		host = "<server-address>"
	}
	fmt.Println("If this machine has no browser, forward the callback port from your local machine:")
	fmt.Printf("  ssh -L %d:127.0.0.1:%d <user>@%s\n", port, port, host)
	fmt.Println("then complete the login in your local browser.")
}
