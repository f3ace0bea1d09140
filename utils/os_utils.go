package utils

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
)

// WaitTerminate delivers SIGINT, SIGTERM and SIGQUIT. Call the returned stop
// function to restore default signal handling.
func WaitTerminate() (<-chan os.Signal, func()) {
	c := make(chan os.Signal, 3)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return c, func() { signal.Stop(c) }
}

// RedirectFile makes the descriptor of from refer to to, so writes that
// bypass the logger (runtime panics on stderr) land in the same file.
func RedirectFile(from, to *os.File) error {
	if err := syscall.Dup2(int(to.Fd()), int(from.Fd())); err != nil {
		return errors.Wrapf(err, "redirect fd %d to %s", from.Fd(), to.Name())
	}
	return nil
}

// OpenLogFile opens path for appending and routes the logger and stderr to it.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %s", path)
	}
	SetLogOutput(f)
	if err := RedirectFile(os.Stderr, f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
