package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/password"
	"github.com/MrEthical07/hsAuth/stage"
)

const loadPassword = "load-test-password"

// users is a read-only in-memory provider sharing one password hash.
type users struct {
	hash  string
	count int
}

func (u users) GetUser(_ context.Context, id string) (hsAuth.User, error) {
	var n int
	if _, err := fmt.Sscanf(id, "@load%d:localhost", &n); err != nil || n < 0 || n >= u.count {
		return hsAuth.User{}, hsAuth.ErrUserNotFound
	}
	return hsAuth.User{ID: id, PasswordHash: u.hash}, nil
}

func (u users) Exists(ctx context.Context, id string) (bool, error) {
	_, err := u.GetUser(ctx, id)
	return err == nil, nil
}

func userID(i int) string {
	return fmt.Sprintf("@load%d:localhost", i)
}

func main() {
	var (
		userCount   = flag.Int("users", 1000, "number of accounts to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per authenticate / interactive phase")
		redisAddr   = flag.String("redis", "", "redis address (default $REDIS_ADDR, else an in-process miniredis)")
	)
	flag.Parse()

	if *userCount <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	if err := run(*userCount, *concurrency, *ops, *redisAddr); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

func run(userCount, concurrency, ops int, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr = cmp.Or(addr, os.Getenv("REDIS_ADDR"))
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
	}
	fmt.Fprintf(os.Stderr, "redis: %s\n", addr)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := hsAuth.DefaultConfig()
	cfg.Password = hsAuth.PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Security.MaxLoginAttempts = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	hasher, err := password.NewHasher(password.Config{
		Memory: cfg.Password.Memory, Time: cfg.Password.Time, Parallelism: cfg.Password.Parallelism,
		SaltLength: cfg.Password.SaltLength, KeyLength: cfg.Password.KeyLength,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return err
	}

	engine, err := hsAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(users{hash: hash, count: userCount}).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	tokens := make([]string, userCount)
	loginStats, err := runPhase(ctx, userCount, concurrency, func(ctx context.Context, i int, _ *rand.Rand) error {
		resp, err := engine.Login(ctx, hsAuth.LoginRequest{
			Type:     stage.Password,
			User:     userID(i),
			Password: loadPassword,
			DeviceID: "LOADTEST",
		})
		if err != nil {
			return err
		}
		tokens[i] = resp.AccessToken
		return nil
	})
	if err != nil {
		return err
	}

	authStats, err := runPhase(ctx, ops, concurrency, func(ctx context.Context, _ int, r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	if err != nil {
		return err
	}

	uiaStats, err := runPhase(ctx, ops, concurrency, func(ctx context.Context, _ int, _ *rand.Rand) error {
		var ie *hsAuth.InteractiveError
		err := engine.ValidateInteractive(ctx, hsAuth.Attempt{})
		if !errors.As(err, &ie) {
			return fmt.Errorf("expected re-prompt, got %v", err)
		}
		return engine.ValidateInteractive(ctx, hsAuth.Attempt{Session: ie.Flows.Session, Type: stage.Dummy})
	})
	if err != nil {
		return err
	}

	printReport([]namedPhase{
		{"login", loginStats},
		{"authenticate", authStats},
		{"interactive", uiaStats},
	})
	return nil
}

// runPhase executes op n times across concurrency workers. Operation
// errors are counted, not returned; only context cancellation aborts.
func runPhase(ctx context.Context, n, concurrency int, op func(context.Context, int, *rand.Rand) error) (phaseStats, error) {
	var (
		next     atomic.Int64
		failures atomic.Int64
	)
	perWorker := make([][]time.Duration, concurrency)

	g, gctx := errgroup.WithContext(ctx)
	began := time.Now()
	for w := range perWorker {
		r := rand.New(rand.NewSource(began.UnixNano() + int64(w)*7919))
		g.Go(func() error {
			for gctx.Err() == nil {
				i := int(next.Add(1)) - 1
				if i >= n {
					return nil
				}
				opStart := time.Now()
				if err := op(gctx, i, r); err != nil {
					failures.Add(1)
				}
				perWorker[w] = append(perWorker[w], time.Since(opStart))
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return summarize(time.Since(began), slices.Concat(perWorker...), failures.Load()), nil
}

var quantiles = [...]int{50, 95, 99}

type phaseStats struct {
	elapsed  time.Duration
	ops      int
	failures int64
	rate     float64
	// q holds the latency at each entry of quantiles.
	q [len(quantiles)]time.Duration
}

func summarize(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	st := phaseStats{elapsed: elapsed, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return st
	}
	slices.Sort(samples)
	st.rate = float64(len(samples)) / elapsed.Seconds()
	for i, q := range quantiles {
		st.q[i] = samples[(len(samples)-1)*q/100]
	}
	return st
}

func printReport(phases []namedPhase) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailed\telapsed\tops/s\tp50\tp95\tp99\t")
	for _, ph := range phases {
		s := ph.stats
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t\n",
			ph.name, s.ops, s.failures,
			s.elapsed.Round(time.Millisecond), s.rate,
			s.q[0].Round(time.Microsecond),
			s.q[1].Round(time.Microsecond),
			s.q[2].Round(time.Microsecond),
		)
	}
	_ = tw.Flush()
}

type namedPhase struct {
	name  string
	stats phaseStats
}
