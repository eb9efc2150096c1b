// Package stream turns a finished reply into a paced sequence of word chunks.
package stream

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

// ErrConsumed is yielded when a one-shot stream is ranged over a second time.
var ErrConsumed = errors.New("stream already consumed")

// Words yields text as word chunks. Each chunk is a word plus the whitespace that follows it;
// leading whitespace belongs to the first chunk. Concatenating the chunks gives back text.
func Words(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		inSpace, seenWord := true, false
		for i, r := range text {
			space := unicode.IsSpace(r)
			if !space && inSpace && seenWord {
				if !yield(text[start:i]) {
					return
				}
				start = i
			}
			if !space {
				seenWord = true
			}
			inSpace = space
		}
		if start < len(text) {
			yield(text[start:])
		}
	}
}

// Split returns the chunks of Words as a slice.
func Split(text string) []string {
	var out []string
	for c := range Words(text) {
		out = append(out, c)
	}
	return out
}

// Paced returns a one-shot stream of the word chunks of text with delay between chunks.
// ctx is checked before every chunk; on cancellation the stream yields ctx.Err() and stops.
func Paced(ctx context.Context, text string, delay time.Duration) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrConsumed)
			return
		}
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		first := true
		for chunk := range Words(text) {
			if !first && delay > 0 {
				if timer == nil {
					timer = time.NewTimer(delay)
				} else {
					timer.Reset(delay)
				}
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-timer.C:
				}
			}
			first = false
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Collect concatenates the chunks of s, stopping at the first error.
func Collect(s iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for chunk, err := range s {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}
