package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Qthai16/lab0-queue/cmd/qtest/opstat"
	"github.com/Qthai16/lab0-queue/common"
	"github.com/Qthai16/lab0-queue/common/alloc"
	"github.com/Qthai16/lab0-queue/common/pool"
	"github.com/Qthai16/lab0-queue/common/queue"
	"github.com/Qthai16/lab0-queue/utils"
	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
)

const maxSourceDepth = 16

var (
	errNoQueue   = errors.New("no queue, run new first")
	errAbandoned = errors.New("queue abandoned")
)

type (
	cmdFn func(ctx context.Context, args []string) error

	command struct {
		fn    cmdFn
		usage string
		// checked after running
		mutates bool
	}

	// Console owns at most one queue and runs qtest commands against it.
	Console struct {
		conf    *Config
		out     io.Writer
		tracker *alloc.Tracker
		stats   *opstat.Stats
		rnd     *rand.Rand
		cmds    map[string]command
		// remove buffers, sized to the current string length
		bufs    *pool.Pool[[]byte]

		q *queue.Queue
		// number of elements the queue should hold
		count int
		depth int
		quit  bool

		// blocks and bytes still charged to queues dropped by guard
		abandonedBlocks int64
		abandonedBytes  int64
	}
)

func NewConsole(conf *Config, out io.Writer) *Console {
	seed := conf.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	c := &Console{
		conf:    conf,
		out:     out,
		tracker: alloc.NewTracker(alloc.Config{FailProbability: conf.FailProbability, Seed: seed}),
		stats:   opstat.New(),
		rnd:     rand.New(rand.NewSource(seed)),
	}
	c.bufs = pool.New(pool.Config[[]byte]{
		Cleanup: func(b *[]byte) {
			clear(*b)
		},
	})
	c.cmds = c.commands()
	return c
}

// Run executes commands read from r until EOF, quit, a time limit abort
// or ctx cancellation.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxStringLength+64)
	for !c.quit && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := c.Exec(ctx, line); errors.Is(err, common.ErrTimeLimit) {
			return err
		}
	}
	return scanner.Err()
}

// Exec runs a single command line. Failures are logged and counted, the
// error is returned for callers that want to stop.
func (c *Console) Exec(ctx context.Context, line string) error {
	if c.conf.Echo {
		fmt.Fprintf(c.out, "cmd> %s\n", line)
	}
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, ok := c.cmds[args[0]]
	if !ok {
		err := errors.Newf("unknown command %q", args[0])
		c.stats.Add("unknown", true, 0)
		utils.LogErro("%v", err)
		return err
	}
	start := time.Now()
	err := cmd.fn(ctx, args[1:])
	if err == nil && cmd.mutates && c.q != nil {
		if err = c.q.Check(); err != nil {
			c.stats.IncErr(opstat.CheckErrKey)
		}
	}
	c.stats.Add(args[0], err != nil, time.Since(start))
	if err != nil {
		utils.LogErro("%s: %v", args[0], err)
	}
	return err
}

// Failed is the number of commands that reported an error.
func (c *Console) Failed() int64 {
	return c.stats.Failed()
}

// guard runs fn under the time limit. When fn overruns or panics the queue
// can no longer be trusted and is dropped without being freed.
func (c *Console) guard(fn func()) error {
	err := common.RunLimited(c.conf.TimeLimit.Duration, fn)
	if err == nil {
		return nil
	}
	c.q = nil
	c.count = 0
	// whatever the dropped queue still holds can never be freed
	c.abandonedBlocks = c.tracker.Blocks()
	c.abandonedBytes = c.tracker.Bytes()
	if errors.Is(err, common.ErrTimeLimit) {
		c.stats.IncErr(opstat.TimeoutErrKey)
		c.quit = true
	}
	return errors.Mark(err, errAbandoned)
}

func (c *Console) requireQueue() error {
	if c.q == nil {
		return errNoQueue
	}
	return nil
}

// freeQueue frees the current queue and reports blocks that survived it.
func (c *Console) freeQueue() error {
	if c.q == nil {
		return nil
	}
	q := c.q
	if err := c.guard(q.Free); err != nil {
		return err
	}
	c.q = nil
	c.count = 0
	if n := c.tracker.Blocks() - c.abandonedBlocks; n != 0 {
		c.stats.IncErr(opstat.LeakErrKey)
		size := c.tracker.Bytes() - c.abandonedBytes
		return errors.Newf("%d blocks (%s) still allocated after free", n, units.BytesSize(float64(size)))
	}
	return nil
}

// Close frees the queue left at the end of a session.
func (c *Console) Close() error {
	err := c.freeQueue()
	if err != nil {
		utils.LogErro("free: %v", err)
	}
	if c.abandonedBlocks != 0 {
		utils.LogWarn("%d blocks left behind by abandoned queues", c.abandonedBlocks)
	}
	if v := c.tracker.Violations(); v != 0 {
		utils.LogWarn("%d allocator violations during session", v)
	}
	return err
}

func (c *Console) source(ctx context.Context, path string) error {
	if c.depth >= maxSourceDepth {
		return errors.Newf("source nested deeper than %d", maxSourceDepth)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "source %s", path)
	}
	defer f.Close()
	c.depth++
	defer func() { c.depth-- }()
	return c.Run(ctx, f)
}

func (c *Console) help() {
	names := make([]string, 0, len(c.cmds))
	for name := range c.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-8s %s\n", name, c.cmds[name].usage)
	}
}
