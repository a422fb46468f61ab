package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yourusername/lhbot/pkg/archive"
)

func cmdGames(args []string) {
	fs := flag.NewFlagSet("games", flag.ExitOnError)
	dsn := fs.String("archive", "file:games.jsonl", "Archive (file:<path> or postgres URL)")
	limit := fs.Int("limit", 10, "Number of games to list")
	full := fs.Bool("moves", false, "Print full move listings")
	fs.Parse(args)

	ctx := context.Background()
	store, err := archive.Open(ctx, *dsn)
	if err != nil {
		fatalf("opening archive: %v", err)
	}
	if store == nil {
		fatalf("no archive given")
	}
	defer store.Close()

	records, err := store.List(ctx, *limit)
	if err != nil {
		fatalf("listing archive: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("No games archived")
		return
	}

	for _, r := range records {
		if *full {
			if err := archive.ExportText(os.Stdout, r); err != nil {
				fatalf("%v", err)
			}
			fmt.Println()
			continue
		}
		fmt.Printf("%s  %s  %s vs %s  %-9s winner=%s moves=%d\n",
			r.Started.Format("2006-01-02 15:04:05"), r.SessionID,
			r.PlayerOne, r.PlayerTwo, r.Result, r.Winner, len(r.Moves))
	}
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fatalf("usage: lhbot replay <listing-file>")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	defer f.Close()

	r, err := archive.ImportText(f)
	if err != nil {
		fatalf("reading %s: %v", fs.Arg(0), err)
	}
	final, err := r.Replay()
	if err != nil {
		fatalf("replaying %s: %v", r.SessionID, err)
	}

	fmt.Printf("Session %s: %s vs %s, %d moves\n", r.SessionID, r.PlayerOne, r.PlayerTwo, len(r.Moves))
	fmt.Print(final.Board.String())
	fmt.Printf("Phase: %s, to move: %s, result: %s\n", final.Phase, final.Current, r.Result)
}
