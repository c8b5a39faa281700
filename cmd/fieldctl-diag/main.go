// Command fieldctl-diag is a small operator console for talking to a
// running controller's HMI panel the same way a real front panel
// would: a Modbus/TCP client dialed straight at the panel's
// holding-register block. It is a REPL, not a supervisor — it never
// touches field gateways, only the panel surface the operator sees.
//
// Construction follows the goburrow/modbus client idiom used
// throughout the retrieved pack (NewTCPClientHandler -> Connect ->
// NewClient); the bootstrap follows the flag-parsing shape common
// across the pack's cmd/ entries, and it installs no signal handler.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"github.com/google/shlex"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1502", "panel Modbus/TCP address")
	unitID := flag.Int("unit", 1, "Modbus unit/slave id")
	timeout := flag.Duration("timeout", 5*time.Second, "connection timeout")
	flag.Parse()

	handler := modbus.NewTCPClientHandler(*addr)
	handler.Timeout = *timeout
	handler.SlaveId = byte(*unitID)

	fmt.Fprintf(os.Stderr, "fieldctl-diag: connecting to %s (unit %d)\n", *addr, *unitID)
	if err := handler.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldctl-diag: connect: %v\n", err)
		os.Exit(1)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	repl(client)
}

func repl(client modbus.Client) {
	fmt.Println("fieldctl-diag ready. commands: read <area>, write <area> <value>, status <area> <count>, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit":
			return
		case "read":
			cmdRead(client, args[1:])
		case "write":
			cmdWrite(client, args[1:])
		case "status":
			cmdStatus(client, args[1:])
		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}

func cmdRead(client modbus.Client, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: read <area>")
		return
	}
	area, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("bad area:", err)
		return
	}
	raw, err := client.ReadHoldingRegisters(uint16(area), 1)
	if err != nil {
		fmt.Println("read error:", err)
		return
	}
	if len(raw) < 2 {
		fmt.Println("short read")
		return
	}
	fmt.Printf("area %d = %d\n", area, uint16(raw[0])<<8|uint16(raw[1]))
}

func cmdWrite(client modbus.Client, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: write <area> <value>")
		return
	}
	area, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("bad area:", err)
		return
	}
	value, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Println("bad value:", err)
		return
	}
	if _, err := client.WriteSingleRegister(uint16(area), uint16(value)); err != nil {
		fmt.Println("write error:", err)
		return
	}
	fmt.Printf("area %d <- %d\n", area, value)
}

func cmdStatus(client modbus.Client, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: status <area> <count>")
		return
	}
	start, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("bad area:", err)
		return
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Println("bad count:", err)
		return
	}
	raw, err := client.ReadHoldingRegisters(uint16(start), uint16(count))
	if err != nil {
		fmt.Println("read error:", err)
		return
	}
	for i := 0; i*2+1 < len(raw); i++ {
		v := uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
		fmt.Printf("area %d = %d\n", start+i, v)
	}
}
