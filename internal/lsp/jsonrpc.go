package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxPayloadSize caps one framed message. A length past this means the
// stream is corrupt or the peer is not speaking the protocol; allocating it
// would take the server down instead of failing the connection.
const maxPayloadSize = 64 << 20

var (
	errMissingLength = errors.New("jsonrpc: missing Content-Length header")
	errBadLength     = errors.New("jsonrpc: invalid Content-Length header")
)

// readMessage consumes one Content-Length framed message. Unknown headers
// (Content-Type and friends) are skipped.
func readMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("%w: %q", errBadLength, strings.TrimSpace(value))
			}
			contentLength = length
		}
	}
	if contentLength < 0 {
		return nil, errMissingLength
	}
	if contentLength > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d exceeds %d bytes", errBadLength, contentLength, maxPayloadSize)
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeMessage(w io.Writer, payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
