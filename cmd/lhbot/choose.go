package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/yourusername/lhbot/internal/positionid"
	"github.com/yourusername/lhbot/pkg/engine"
	"github.com/yourusername/lhbot/pkg/policy"
)

func cmdChoose(args []string) {
	fs := flag.NewFlagSet("choose", flag.ExitOnError)
	name := fs.String("policy", "first", "Policy (random|first|net|deep|lua)")
	file := fs.String("file", "", "Weights or script for the policy")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Random seed")
	fs.Parse(args)

	var s engine.GameSession
	switch fs.NArg() {
	case 0:
		s = engine.Reset()
	case 1:
		var err error
		s, err = positionid.SessionFromPositionID(fs.Arg(0))
		if err != nil {
			fatalf("invalid position ID: %v", err)
		}
	default:
		fatalf("usage: lhbot choose [options] [position-id]")
	}

	pol, err := policy.New(*name, *file, *seed)
	if err != nil {
		fatalf("loading policy: %v", err)
	}
	if c, ok := pol.(*policy.LuaPolicy); ok {
		defer c.Close()
	}

	fmt.Print(s.Board.String())
	fmt.Printf("Position: %s\n", positionid.PositionID(s))
	fmt.Printf("To move:  %s\n", s.Current)

	legal := engine.LegalActions(s)
	if len(legal) == 0 {
		fmt.Println("No legal actions")
		return
	}
	fmt.Print("Legal:   ")
	for _, id := range legal {
		a, _ := engine.DecodeAction(id)
		fmt.Printf(" %s", a)
	}
	fmt.Println()

	id, elapsed, err := policy.Choose(context.Background(), pol, engine.Encode(s))
	if err != nil {
		fatalf("%v", err)
	}
	a, _ := engine.DecodeAction(id)
	legalMark := ""
	if !engine.IsLegal(s, s.Current, a.Class, a.Column) {
		legalMark = " (illegal)"
	}
	fmt.Printf("Choice:   %s [%d]%s in %v\n", a, id, legalMark, elapsed)
}
