package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/internal/metrics"
	"github.com/yourusername/lhbot/pkg/archive"
	"github.com/yourusername/lhbot/pkg/policy"
	"github.com/yourusername/lhbot/pkg/session"
	"github.com/yourusername/lhbot/pkg/transport"
)

// gameResult is the outcome of one self-play game.
type gameResult struct {
	game   int
	result string
	winner string // "a", "b" or ""
	moves  int
	err    error
}

func cmdSelfplay(args []string) {
	fs := flag.NewFlagSet("selfplay", flag.ExitOnError)
	games := fs.Int("games", 10, "Number of games")
	workers := fs.Int("workers", 4, "Games played concurrently")
	policyA := fs.String("a", "random", "Policy of bot a (random|first|net|deep|lua)")
	fileA := fs.String("a-file", "", "Weights or script of bot a")
	policyB := fs.String("b", "random", "Policy of bot b")
	fileB := fs.String("b-file", "", "Weights or script of bot b")
	delay := fs.Duration("delay", time.Millisecond, "Reply delay")
	timeout := fs.Duration("timeout", time.Minute, "Timeout per game")
	archiveDSN := fs.String("archive", "", "Archive for finished games (file:<path> or postgres URL)")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Random seed")
	logLevel := fs.String("log-level", "warn", "Log level")
	fs.Parse(args)

	if *games < 1 || *workers < 1 {
		fatalf("games and workers must be positive")
	}

	log := logger.Init(*logLevel, false)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	polA, err := policy.New(*policyA, *fileA, *seed)
	if err != nil {
		fatalf("policy a: %v", err)
	}
	polB, err := policy.New(*policyB, *fileB, *seed+1)
	if err != nil {
		fatalf("policy b: %v", err)
	}

	store, err := archive.Open(ctx, *archiveDSN)
	if err != nil {
		fatalf("opening archive: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	stats := metrics.New()
	jobs := make(chan int)
	results := make(chan gameResult)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range jobs {
				gctx, cancel := context.WithTimeout(ctx, *timeout)
				results <- playGame(gctx, g, selfplayConfig{
					policyA: polA,
					policyB: polB,
					delay:   *delay,
					archive: store,
					stats:   stats,
					log:     log,
				})
				cancel()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for g := 1; g <= *games; g++ {
			select {
			case jobs <- g:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	start := time.Now()
	tally := map[string]int{}
	var totalMoves, played int
	for r := range results {
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "game %d: %v\n", r.game, r.err)
			tally["error"]++
			continue
		}
		played++
		totalMoves += r.moves
		key := r.result
		if r.winner != "" {
			key = "win " + r.winner
		}
		tally[key]++
		fmt.Printf("game %3d: %-10s %s (%d moves)\n", r.game, r.result, r.winner, r.moves)
	}

	fmt.Printf("\n=== %s (a) vs %s (b) ===\n", *policyA, *policyB)
	fmt.Printf("Games played: %d in %v\n", played, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Bot a wins:   %d\n", tally["win a"])
	fmt.Printf("Bot b wins:   %d\n", tally["win b"])
	for _, k := range []string{"draw", "no_moves", "fault", "abandoned", "error"} {
		if tally[k] > 0 {
			fmt.Printf("%-13s %d\n", k+":", tally[k])
		}
	}
	if played > 0 {
		fmt.Printf("Avg moves:    %.1f\n", float64(totalMoves)/float64(played))
	}
}

type selfplayConfig struct {
	policyA, policyB policy.Policy
	delay            time.Duration
	archive          archive.Store
	stats            *metrics.Metrics
	log              *zap.Logger
}

// playGame connects two machines to a private broker, lets bot a
// challenge and waits for bot a to see the game end.
func playGame(ctx context.Context, game int, cfg selfplayConfig) gameResult {
	res := gameResult{game: game}

	broker := transport.NewMemoryBroker()
	idA := fmt.Sprintf("selfplay_a_%d", game)
	idB := fmt.Sprintf("selfplay_b_%d", game)

	a, err := session.New(broker.Connect(), session.Options{
		ClientID:      idA,
		Policy:        cfg.policyA,
		ReplyDelay:    cfg.delay,
		Logger:        cfg.log,
		Metrics:       cfg.stats,
		Archive:       cfg.archive,
		AutoChallenge: true,
	})
	if err != nil {
		res.err = err
		return res
	}
	b, err := session.New(broker.Connect(), session.Options{
		ClientID:   idB,
		Policy:     cfg.policyB,
		ReplyDelay: cfg.delay,
		Logger:     cfg.log,
	})
	if err != nil {
		res.err = err
		return res
	}

	events, cancelEvents := a.Subscribe()
	defer cancelEvents()

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, m := range []*session.Machine{b, a} {
		wg.Add(1)
		go func(m *session.Machine) {
			defer wg.Done()
			if err := m.Run(runCtx); err != nil {
				cfg.log.Warn("machine stopped", zap.String("client", m.ClientID()), zap.Error(err))
			}
		}(m)
		// b must be listening before a challenges.
		select {
		case <-m.Ready():
		case <-ctx.Done():
		}
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	roleA := session.RoleFor(idA, idB)
	for {
		select {
		case <-ctx.Done():
			res.err = fmt.Errorf("game did not finish: %w", ctx.Err())
			return res
		case e := <-events:
			if e.Type != session.EventEnd {
				continue
			}
			res.result = e.Result
			res.moves = a.Snapshot().Moves
			switch e.Player {
			case "":
			case roleA.String():
				res.winner = "a"
			default:
				res.winner = "b"
			}
			return res
		}
	}
}
