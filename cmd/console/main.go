package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/gorilla/websocket"

	"github.com/Bitsy-Chuck/crowdnet/console"
	"github.com/Bitsy-Chuck/crowdnet/nnet"
)

// Remote console client. Connects to a running training session and
// forwards commands typed on standard input.
func main() {
	addr := flag.String("addr", "localhost:8080", "training session console address")
	flag.Parse()

	url := "ws://" + *addr + "/console"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	nnet.CheckErr(err)
	defer conn.Close()
	fmt.Println("connected to", url)
	fmt.Println("commands: s[ave], q[uit], l <learning rate>")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, err := console.Parse(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd.String())); err != nil {
			nnet.CheckErr(err)
		}
		_, reply, err := conn.ReadMessage()
		nnet.CheckErr(err)
		fmt.Println(string(reply))
	}
}
