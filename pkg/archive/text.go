package archive

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/lhbot/pkg/engine"
)

// The text format is a readable game listing, one line per pair of moves:
//
//	; [Session "0b6c..."]
//	; [Player 1 "bot_1234"]
//	; [Player 2 "client_ab12"]
//	; [Result "win"]
//	; [Winner "one"]
//
//	  1) light@2     heavy@2
//	  2) light@0     heavy@6
//
// Observations are not written; ImportText recomputes them by replaying.

var (
	tagRE      = regexp.MustCompile(`\[(\w+(?: \d)?)\s+"([^"]*)"\]`)
	moveLineRE = regexp.MustCompile(`^\s*(\d+)\)\s*(.*)$`)
	moveRE     = regexp.MustCompile(`^(light|heavy)@(\d+)$`)
)

// ExportText writes a record in the text format.
func ExportText(w io.Writer, r *Record) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "; [Session \"%s\"]\n", r.SessionID)
	fmt.Fprintf(bw, "; [Player 1 \"%s\"]\n", r.PlayerOne)
	fmt.Fprintf(bw, "; [Player 2 \"%s\"]\n", r.PlayerTwo)
	if !r.Started.IsZero() {
		fmt.Fprintf(bw, "; [Date \"%s\"]\n", r.Started.Format(time.RFC3339))
	}
	fmt.Fprintf(bw, "; [Result \"%s\"]\n", r.Result)
	if r.Reason != "" {
		fmt.Fprintf(bw, "; [Reason \"%s\"]\n", r.Reason)
	}
	fmt.Fprintf(bw, "; [Winner \"%s\"]\n\n", r.Winner)

	for i, m := range r.Moves {
		text := m.Class + "@" + strconv.Itoa(m.Column)
		if i%2 == 0 {
			fmt.Fprintf(bw, "%3d) %-12s", i/2+1, text)
		} else {
			fmt.Fprintf(bw, "%s\n", text)
		}
	}
	if len(r.Moves)%2 == 1 {
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// ImportText reads a record written by ExportText. Moves alternate
// between the players starting with PlayerOne.
func ImportText(rd io.Reader) (*Record, error) {
	r := &Record{Result: ResultInProgress, Winner: engine.NoPlayer, Self: engine.NoPlayer}
	scanner := bufio.NewScanner(rd)

	var moves []engine.Action
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ";") {
			m := tagRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			switch strings.ToLower(m[1]) {
			case "session":
				r.SessionID = m[2]
			case "player 1":
				r.PlayerOne = m[2]
			case "player 2":
				r.PlayerTwo = m[2]
			case "date":
				if t, err := time.Parse(time.RFC3339, m[2]); err == nil {
					r.Started = t
				}
			case "result":
				r.Result = Result(m[2])
			case "reason":
				r.Reason = m[2]
			case "winner":
				r.Winner = parsePlayer(m[2])
			}
			continue
		}

		m := moveLineRE.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("unrecognised line %q", line)
		}
		for _, field := range strings.Fields(m[2]) {
			a, err := parseMove(field)
			if err != nil {
				return nil, err
			}
			moves = append(moves, a)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}

	s := engine.Reset()
	s.Phase = engine.Playing
	for _, a := range moves {
		r.AddMove(s, s.Current, a)
		next, outcome, err := engine.Place(s, s.Current, a.Class, a.Column)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", len(r.Moves), err)
		}
		if outcome.Kind != engine.Continue {
			return nil, fmt.Errorf("move %d: %s", len(r.Moves), outcome.Reason)
		}
		s = next
	}
	return r, nil
}

func parseMove(text string) (engine.Action, error) {
	m := moveRE.FindStringSubmatch(text)
	if m == nil {
		return engine.Action{}, fmt.Errorf("bad move %q", text)
	}
	class, _ := engine.ParsePieceClass(m[1])
	col, _ := strconv.Atoi(m[2])
	a := engine.Action{Column: col, Class: class}
	if _, err := engine.EncodeAction(a); err != nil {
		return engine.Action{}, err
	}
	return a, nil
}

func parsePlayer(s string) engine.Player {
	switch s {
	case "one":
		return engine.PlayerOne
	case "two":
		return engine.PlayerTwo
	}
	return engine.NoPlayer
}
