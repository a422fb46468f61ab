// lhbot - a light and heavy bot that matchmakes and plays over pub/sub
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "play":
		cmdPlay(args)
	case "relay":
		cmdRelay(args)
	case "selfplay":
		cmdSelfplay(args)
	case "choose":
		cmdChoose(args)
	case "games":
		cmdGames(args)
	case "replay":
		cmdReplay(args)
	case "version":
		fmt.Printf("lhbot v%s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lhbot - Light and Heavy Bot

Usage: lhbot <command> [options]

Commands:
  play      Connect to a broker, challenge and play games
  relay     Run a WebSocket relay broker for local play
  selfplay  Play games between two policies in process
  choose    Ask a policy for the move in a position
  games     List archived games
  replay    Replay a game listing and print the final board
  version   Print the version

Use "lhbot <command> -h" for command-specific help.

Settings are read from a .env file, then the environment (LH_* keys,
LOG_LEVEL, LOG_FORMAT), then flags.`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
