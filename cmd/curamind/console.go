package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errInputClosed = errors.New("input closed")

// console reads stdin on one goroutine so prompts and live chat can share it.
type console struct {
	lines <-chan string
	out   io.Writer
}

func newConsole(ctx context.Context, in io.Reader, out io.Writer) *console {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &console{lines: ch, out: out}
}

func (c *console) say(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	return c.next(ctx)
}

func (c *console) next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", errInputClosed
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// choose asks for a 1-based index into n options. Blank input returns -1.
func (c *console) choose(ctx context.Context, prompt string, n int) (int, error) {
	for {
		s, err := c.ask(ctx, prompt)
		if err != nil {
			return 0, err
		}
		if s == "" {
			return -1, nil
		}
		var i int
		if _, err := fmt.Sscanf(s, "%d", &i); err == nil && i >= 1 && i <= n {
			return i - 1, nil
		}
		c.say("Please enter a number between 1 and %d.", n)
	}
}
