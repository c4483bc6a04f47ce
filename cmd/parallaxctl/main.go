// Command parallaxctl is a thin debug client for attaching a real terminal
// to a parallaxd-supervised session: stdin is put into raw mode and
// forwarded as session input, while session_output events are streamed
// back to stdout. Grounded on the teacher's tools/si/dyad_interactive.go
// term.MakeRaw/term.Restore raw-mode handling, generalized from a
// line-at-a-time prompt to full passthrough.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
)

type sseEvent struct {
	Kind string `json:"Kind"`
	Data string `json:"Data"`
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8877", "parallaxd base URL")
	sessionID := flag.String("session", "", "session id to attach to")
	flag.Parse()

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "parallaxctl: -session is required")
		os.Exit(2)
	}

	if err := attach(*addr, *sessionID); err != nil {
		fmt.Fprintf(os.Stderr, "parallaxctl: %v\n", err)
		os.Exit(1)
	}
}

func attach(addr, sessionID string) error {
	events, err := http.Get(addr + "/sessions/" + sessionID + "/events")
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	defer events.Body.Close()

	done := make(chan struct{})
	go streamEvents(events.Body, done)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fd := int(os.Stdin.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()
	}

	forwardStdin(addr, sessionID)
	<-done
	return nil
}

// streamEvents reads the server-sent-events body line by line, printing
// the Data field of every session_output event verbatim.
func streamEvents(body io.Reader, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimPrefix(line, "data: ")
		case line == "":
			if dataLine == "" {
				continue
			}
			var e sseEvent
			if err := json.Unmarshal([]byte(dataLine), &e); err == nil && e.Data != "" {
				fmt.Fprint(os.Stdout, e.Data)
			}
			dataLine = ""
		}
	}
}

// forwardStdin reads raw keystrokes from stdin and POSTs them as session
// input until stdin closes.
func forwardStdin(addr, sessionID string) {
	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			postInput(addr, sessionID, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func postInput(addr, sessionID string, data []byte) {
	payload, err := json.Marshal(map[string]string{"data": string(data)})
	if err != nil {
		return
	}
	resp, err := http.Post(addr+"/sessions/"+sessionID+"/input", "application/json", bytes.NewReader(payload))
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}
