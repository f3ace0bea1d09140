package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Qthai16/lab0-queue/cmd/qtest/opstat"
	"github.com/Qthai16/lab0-queue/common/queue"
	"github.com/Qthai16/lab0-queue/common/snapshot"
	"github.com/Qthai16/lab0-queue/utils"
	"github.com/Qthai16/lab0-queue/utils/hashkit"
	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
)

// randomValue is the ih/it argument replaced by generated strings.
const randomValue = "RAND"

func (c *Console) commands() map[string]command {
	return map[string]command{
		"new":     {c.cmdNew, "create a new queue", true},
		"free":    {c.cmdFree, "free the queue", false},
		"ih":      {c.insert(true), "str [n]: insert str n times at head, RAND for random strings", true},
		"it":      {c.insert(false), "str [n]: insert str n times at tail, RAND for random strings", true},
		"rh":      {c.remove(true, false), "[str]: remove from head, compare with str", true},
		"rt":      {c.remove(false, false), "[str]: remove from tail, compare with str", true},
		"rhq":     {c.remove(true, true), "remove from head quietly", true},
		"size":    {c.cmdSize, "[n]: compute queue size n times", false},
		"dm":      {c.cmdDeleteMid, "delete the middle element", true},
		"dedup":   {c.cmdDedup, "delete every value that appears more than once (sorted queue)", true},
		"swap":    {c.relink("swap", (*queue.Queue).Swap), "swap every two adjacent elements", true},
		"reverse": {c.relink("reverse", (*queue.Queue).Reverse), "reverse the queue", true},
		"sort":    {c.cmdSort, "sort the queue ascending", true},
		"show":    {c.cmdShow, "print the queue", false},
		"check":   {c.cmdCheck, "validate the queue links", false},
		"save":    {c.cmdSave, "file: write a snapshot of the queue", false},
		"load":    {c.cmdLoad, "file: replace the queue with a snapshot", true},
		"hash":    {c.cmdHash, "print the checksum of the queue", false},
		"option":  {c.cmdOption, "[name value]: list or set options", false},
		"stats":   {c.cmdStats, "[cmd...]: print command statistics or latency of cmd", false},
		"source":  {c.cmdSource, "file: run commands from file", false},
		"help":    {c.cmdHelp, "list commands", false},
		"quit":    {c.cmdQuit, "exit", false},
	}
}

func parseCount(args []string, idx int) (int, error) {
	if len(args) <= idx {
		return 1, nil
	}
	n, err := strconv.Atoi(args[idx])
	if err != nil || n < 1 {
		return 0, errors.Newf("invalid count %q", args[idx])
	}
	return n, nil
}

func (c *Console) cmdNew(ctx context.Context, args []string) error {
	if err := c.freeQueue(); err != nil {
		return err
	}
	var q *queue.Queue
	if err := c.guard(func() { q = queue.New(queue.WithAllocator(c.tracker)) }); err != nil {
		return err
	}
	if q == nil {
		c.stats.IncErr(opstat.AllocErrKey)
		return errors.Wrap(queue.ErrNoMemory, "new")
	}
	c.q = q
	c.count = 0
	c.show()
	return nil
}

func (c *Console) cmdFree(ctx context.Context, args []string) error {
	if err := c.requireQueue(); err != nil {
		return err
	}
	return c.freeQueue()
}

func (c *Console) randomString() string {
	b := make([]byte, 5+c.rnd.Intn(6))
	for i := range b {
		b[i] = byte('a' + c.rnd.Intn(26))
	}
	return string(b)
}

func (c *Console) insert(head bool) cmdFn {
	return func(ctx context.Context, args []string) error {
		if len(args) < 1 {
			return errors.New("missing string argument")
		}
		n, err := parseCount(args, 1)
		if err != nil {
			return err
		}
		if err := c.requireQueue(); err != nil {
			return err
		}
		q := c.q
		for i := 0; i < n; i++ {
			s := args[0]
			if s == randomValue {
				s = c.randomString()
			}
			var ierr error
			if err := c.guard(func() {
				if head {
					ierr = q.InsertHead(s)
				} else {
					ierr = q.InsertTail(s)
				}
			}); err != nil {
				return err
			}
			if errors.Is(ierr, queue.ErrNoMemory) {
				c.stats.IncErr(opstat.AllocErrKey)
				if c.tracker.FailProbability() > 0 {
					utils.LogDebug("insert of %q refused by allocator", s)
					continue
				}
			}
			if ierr != nil {
				return ierr
			}
			c.count++
		}
		c.show()
		return nil
	}
}

func (c *Console) remove(head, quiet bool) cmdFn {
	return func(ctx context.Context, args []string) error {
		if err := c.requireQueue(); err != nil {
			return err
		}
		q := c.q
		sp := c.removeBuffer()
		var e *queue.Element
		if err := c.guard(func() {
			if head {
				e = q.RemoveHead(*sp)
			} else {
				e = q.RemoveTail(*sp)
			}
		}); err != nil {
			// an overrun remove may still write into sp, leave it to the GC
			return err
		}
		defer c.bufs.Put(&sp)
		if e == nil {
			if c.count == 0 {
				return nil
			}
			return errors.Newf("remove returned nil with %d elements queued", c.count)
		}
		defer e.Release()
		if c.count == 0 {
			return errors.Newf("removed %q from a queue that should be empty", e.Value)
		}
		c.count--

		buf := *sp
		got := string(buf[:bytes.IndexByte(buf, 0)])
		if !strings.HasPrefix(e.Value, got) || (len(e.Value) < len(buf) && got != e.Value) {
			c.stats.IncErr(opstat.MismatchErrKey)
			return errors.Newf("copied %q does not match removed value %q", got, e.Value)
		}
		if len(args) > 0 && got != args[0] {
			c.stats.IncErr(opstat.MismatchErrKey)
			return errors.Newf("removed %q, expected %q", got, args[0])
		}
		if !quiet {
			fmt.Fprintf(c.out, "Removed %s from queue\n", got)
			c.show()
		}
		return nil
	}
}

// removeBuffer takes a pooled buffer holding string-length bytes and the
// terminator.
func (c *Console) removeBuffer() *[]byte {
	sp := c.bufs.Get()
	n := c.conf.StringLength + 1
	if cap(*sp) < n {
		*sp = make([]byte, n)
	}
	*sp = (*sp)[:n]
	return sp
}

func (c *Console) cmdSize(ctx context.Context, args []string) error {
	n, err := parseCount(args, 0)
	if err != nil {
		return err
	}
	if err := c.requireQueue(); err != nil {
		return err
	}
	q := c.q
	size := 0
	for i := 0; i < n; i++ {
		if err := c.guard(func() { size = q.Size() }); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "Queue size = %d\n", size)
	if size != c.count {
		c.stats.IncErr(opstat.MismatchErrKey)
		return errors.Newf("computed size %d, expected %d", size, c.count)
	}
	return nil
}

func (c *Console) cmdDeleteMid(ctx context.Context, args []string) error {
	if err := c.requireQueue(); err != nil {
		return err
	}
	q := c.q
	var derr error
	if err := c.guard(func() { derr = q.DeleteMid() }); err != nil {
		return err
	}
	if c.count == 0 {
		if !errors.Is(derr, queue.ErrEmpty) {
			return errors.Newf("delete mid on empty queue returned %v", derr)
		}
		return nil
	}
	if derr != nil {
		return derr
	}
	c.count--
	c.show()
	return nil
}

// uniqueCount counts values that are not equal to either neighbour.
func uniqueCount(values []string) int {
	n := 0
	for i, v := range values {
		if (i == 0 || values[i-1] != v) && (i == len(values)-1 || values[i+1] != v) {
			n++
		}
	}
	return n
}

func (c *Console) cmdDedup(ctx context.Context, args []string) error {
	if err := c.requireQueue(); err != nil {
		return err
	}
	q := c.q
	if !q.Sorted() {
		return errors.New("queue must be sorted before dedup")
	}
	expect := uniqueCount(q.Values())
	var derr error
	if err := c.guard(func() { derr = q.DeleteDup() }); err != nil {
		return err
	}
	if derr != nil {
		return derr
	}
	c.count = q.Size()
	if c.count != expect {
		c.stats.IncErr(opstat.MismatchErrKey)
		return errors.Newf("%d elements left, expected %d", c.count, expect)
	}
	c.show()
	return nil
}

// relink runs an operation that may only move existing elements.
func (c *Console) relink(name string, op func(*queue.Queue)) cmdFn {
	return func(ctx context.Context, args []string) error {
		if err := c.requireQueue(); err != nil {
			return err
		}
		q := c.q
		before := c.tracker.Violations()
		c.tracker.Forbid()
		err := c.guard(func() { op(q) })
		c.tracker.Allow()
		if err != nil {
			return err
		}
		if c.tracker.Violations() != before {
			c.stats.IncErr(opstat.AllocErrKey)
			return errors.Newf("%s allocated or freed memory", name)
		}
		c.show()
		return nil
	}
}

func (c *Console) cmdSort(ctx context.Context, args []string) error {
	if err := c.relink("sort", (*queue.Queue).Sort)(ctx, args); err != nil {
		return err
	}
	if c.q.Size() != c.count {
		return errors.Newf("sort changed size to %d, expected %d", c.q.Size(), c.count)
	}
	if !c.q.Sorted() {
		return errors.New("queue not sorted in ascending order")
	}
	return nil
}

// show prints the queue after a command when echo is on.
func (c *Console) show() {
	if c.conf.Echo {
		c.printQueue()
	}
}

func (c *Console) printQueue() {
	if c.q == nil {
		fmt.Fprintln(c.out, "q = NULL")
		return
	}
	fmt.Fprintf(c.out, "q = [%s]\n", strings.Join(c.q.Values(), " "))
}

func (c *Console) cmdShow(ctx context.Context, args []string) error {
	c.printQueue()
	return nil
}

func (c *Console) cmdCheck(ctx context.Context, args []string) error {
	if err := c.requireQueue(); err != nil {
		return err
	}
	if err := c.q.Check(); err != nil {
		c.stats.IncErr(opstat.CheckErrKey)
		return err
	}
	if size := c.q.Size(); size != c.count {
		return errors.Newf("queue holds %d elements, expected %d", size, c.count)
	}
	return nil
}

func (c *Console) cmdSave(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: save file")
	}
	if err := c.requireQueue(); err != nil {
		return err
	}
	values := c.q.Values()
	if err := snapshot.WriteFile(ctx, args[0], values, c.conf.Hash); err != nil {
		return err
	}
	utils.LogInfo("saved %d values to %s", len(values), args[0])
	return nil
}

func (c *Console) cmdLoad(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: load file")
	}
	s, err := snapshot.ReadFile(ctx, args[0])
	if err != nil {
		return err
	}
	if err := c.cmdNew(ctx, nil); err != nil {
		return err
	}
	q := c.q
	for i, v := range s.Values {
		var ierr error
		if err := c.guard(func() { ierr = q.InsertTail(v) }); err != nil {
			return err
		}
		if ierr != nil {
			c.stats.IncErr(opstat.AllocErrKey)
			return errors.Wrapf(ierr, "load stopped after %d of %d values", i, len(s.Values))
		}
		c.count++
	}
	utils.LogInfo("loaded %d values from %s", len(s.Values), args[0])
	c.show()
	return nil
}

func (c *Console) cmdHash(ctx context.Context, args []string) error {
	if err := c.requireQueue(); err != nil {
		return err
	}
	sum, err := hashkit.Checksum(c.conf.Hash, c.q.Values())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %016x\n", c.conf.Hash, sum)
	return nil
}

func (c *Console) cmdOption(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "  echo     %v\n", c.conf.Echo)
		fmt.Fprintf(c.out, "  hash     %s (%s)\n", c.conf.Hash, strings.Join(hashkit.Names(), ", "))
		fmt.Fprintf(c.out, "  length   %s\n", units.BytesSize(float64(c.conf.StringLength)))
		fmt.Fprintf(c.out, "  limit    %v\n", c.conf.TimeLimit.Duration)
		fmt.Fprintf(c.out, "  malloc   %d\n", c.tracker.FailProbability())
		fmt.Fprintf(c.out, "  verbose  %d\n", c.conf.Verbose)
		return nil
	}
	if len(args) != 2 {
		return errors.New("usage: option name value")
	}
	name, value := args[0], args[1]
	switch name {
	case "echo":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "echo")
		}
		c.conf.Echo = v
	case "hash":
		if _, err := hashkit.Lookup(value); err != nil {
			return err
		}
		c.conf.Hash = value
	case "length":
		v, err := units.RAMInBytes(value)
		if err != nil || v < 1 || v > maxStringLength {
			return errors.Newf("invalid length %q", value)
		}
		c.conf.StringLength = int(v)
	case "limit":
		v, err := time.ParseDuration(value)
		if err != nil || v < 0 {
			return errors.Newf("invalid limit %q", value)
		}
		c.conf.TimeLimit.Duration = v
	case "malloc":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 || v > 100 {
			return errors.Newf("invalid malloc failure probability %q", value)
		}
		c.conf.FailProbability = v
		c.tracker.SetFailProbability(v)
	case "verbose":
		v, err := strconv.Atoi(value)
		if err != nil {
			return errors.Newf("invalid verbose level %q", value)
		}
		c.conf.Verbose = v
		utils.SetLogLevel(v)
	default:
		return errors.Newf("unknown option %q", name)
	}
	return nil
}

func (c *Console) cmdStats(ctx context.Context, args []string) error {
	if len(args) > 0 {
		for _, name := range args {
			median, p99 := c.stats.Latency(name)
			fmt.Fprintf(c.out, "%-8s runs %d median %v p99 %v\n", name, c.stats.Count(name), median, p99)
		}
		return nil
	}
	data, err := c.stats.JSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, string(data))
	return nil
}

func (c *Console) cmdSource(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: source file")
	}
	return c.source(ctx, args[0])
}

func (c *Console) cmdHelp(ctx context.Context, args []string) error {
	c.help()
	return nil
}

func (c *Console) cmdQuit(ctx context.Context, args []string) error {
	c.quit = true
	return nil
}
