// Package console accepts control commands for a running training
// session. Commands arrive from standard input or over a websocket and
// are queued for the trainer to poll between steps.
package console

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Kind identifies a control command.
type Kind int

const (
	Save Kind = iota
	Quit
	SetLearningRate
)

func (k Kind) String() string {
	switch k {
	case Save:
		return "save"
	case Quit:
		return "quit"
	case SetLearningRate:
		return "change learning rate"
	}
	return "unknown"
}

// Command is one request issued to the trainer.
type Command struct {
	Kind Kind
	Rate float64
}

func (c Command) String() string {
	if c.Kind == SetLearningRate {
		return fmt.Sprintf("%s %g", c.Kind, c.Rate)
	}
	return c.Kind.String()
}

// Parse converts one input line to a command. Both the single letter
// shortcuts and the long forms are accepted.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}
	switch fields[0] {
	case "s", "save":
		return Command{Kind: Save}, nil
	case "q", "quit":
		return Command{Kind: Quit}, nil
	case "l":
		return parseRate(fields[1:])
	case "change":
		if len(fields) >= 3 && fields[1] == "learning" && fields[2] == "rate" {
			return parseRate(fields[3:])
		}
	}
	return Command{}, errors.Errorf("unknown command %q", strings.TrimSpace(line))
}

func parseRate(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, errors.New("change learning rate needs one argument")
	}
	rate, err := strconv.ParseFloat(args[0], 64)
	if err != nil || rate <= 0 {
		return Command{}, errors.Errorf("invalid learning rate %q", args[0])
	}
	return Command{Kind: SetLearningRate, Rate: rate}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Listener queues commands from any number of input sources.
type Listener struct {
	ch chan Command
}

func NewListener() *Listener {
	return &Listener{ch: make(chan Command, 16)}
}

// Poll returns the next queued command without blocking.
func (l *Listener) Poll() (Command, bool) {
	select {
	case cmd := <-l.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}

// Push queues a command directly.
func (l *Listener) Push(cmd Command) {
	select {
	case l.ch <- cmd:
	default:
		log.Println("console: command queue full, dropped", cmd)
	}
}

// ListenInput reads commands line by line until r is closed. Malformed
// lines are logged and dropped.
func (l *Listener) ListenInput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmd, err := Parse(line)
		if err != nil {
			log.Println("console:", err)
			continue
		}
		l.Push(cmd)
	}
}

// Handler returns the websocket command endpoint. Each text message is
// parsed as one command and acknowledged.
func (l *Listener) Handler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("console: websocket upgrade:", err)
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := Parse(string(msg))
			if err != nil {
				conn.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
				continue
			}
			l.Push(cmd)
			conn.WriteMessage(websocket.TextMessage, []byte("ok: "+cmd.String()))
		}
	}
}

// Serve runs the websocket command server. It blocks until the server
// fails, so it is normally run on its own goroutine.
func (l *Listener) Serve(addr string) error {
	r := mux.NewRouter()
	r.HandleFunc("/console", l.Handler())
	return http.ListenAndServe(addr, r)
}
