package composer

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// LineRecognizer takes the next input line as the spoken utterance. It
// backs dictation in terminals without a speech engine.
type LineRecognizer struct {
	lines <-chan string
}

func NewLineRecognizer(lines <-chan string) *LineRecognizer {
	return &LineRecognizer{lines: lines}
}

func (lr *LineRecognizer) Listen(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			return "", errors.New("input closed")
		}
		return line, nil
	}
}

// ReadLines streams r line by line and closes the channel at EOF.
func ReadLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			out <- sc.Text()
		}
	}()
	return out
}
