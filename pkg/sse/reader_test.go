package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// chunkReader returns one predefined chunk per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n < len(c.chunks[0]) {
		c.chunks[0] = c.chunks[0][n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

type received struct {
	Type    string
	Payload Payload
}

// collect consumes src and returns every handled event.
func collect(src io.Reader, opts ...Option) ([]received, error) {
	var got []received
	err := Consume(context.Background(), src, func(eventType string, payload Payload) error {
		got = append(got, received{Type: eventType, Payload: payload})
		return nil
	}, opts...)
	return got, err
}

const endToEnd = "event: thinking\ndata: {\"content\":\"step one\"}\n\n" +
	"data: {\"type\":\"final_answer\",\"content\":\"done\"}\n\n"

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		It("yields events in order then nil at end of stream", func() {
			r := NewReader(strings.NewReader(endToEnd))
			Expect(r.State()).To(Equal(StateOpen))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("thinking"))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("final_answer"))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
			Expect(r.State()).To(Equal(StateClosed))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("returns nil on empty input", func() {
			r := NewReader(strings.NewReader(""))
			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("processes data delivered together with io.EOF", func() {
			r := NewReader(iotest.DataErrReader(strings.NewReader(endToEnd)))
			var types []string
			for {
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if ev == nil {
					break
				}
				types = append(types, ev.Type)
			}
			Expect(types).To(Equal([]string{"thinking", "final_answer"}))
		})

		It("drops a final line that was never newline terminated", func() {
			obs := &countingObserver{}
			got, err := collect(strings.NewReader(`data: {"content":"lost"}`), WithObserver(obs))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
			Expect(obs.closings).To(Equal([]State{StateClosed}))
		})

		It("wraps read failures in ErrStreamInterrupted once", func() {
			boom := errors.New("connection reset")
			src := io.MultiReader(strings.NewReader(endToEnd), iotest.ErrReader(boom))
			r := NewReader(src)

			_, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Next()
			Expect(err).NotTo(HaveOccurred())

			ev, err := r.Next()
			Expect(ev).To(BeNil())
			Expect(err).To(MatchError(ErrStreamInterrupted))
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(r.State()).To(Equal(StateClosed))

			ev, err = r.Next()
			Expect(ev).To(BeNil())
			Expect(err).NotTo(HaveOccurred())
		})

		It("treats a cancelled source as a normal close", func() {
			src := io.MultiReader(strings.NewReader(endToEnd), iotest.ErrReader(context.Canceled))
			got, err := collect(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
		})
	})

	Describe("Consume", func() {
		It("delivers the end-to-end scenario", func() {
			got, err := collect(strings.NewReader(endToEnd))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))

			Expect(got[0].Type).To(Equal("thinking"))
			Expect(got[0].Payload.Content).To(Equal("step one"))

			Expect(got[1].Type).To(Equal("final_answer"))
			Expect(got[1].Payload.Content).To(Equal("done"))
			Expect(got[1].Payload.String("type")).To(Equal("final_answer"))
		})

		It("delivers the same events for every chunking", func() {
			input := []byte(endToEnd + "event: agent_completed\ndata: {\"agent_name\":\"Räkna ✓\",\"message\":\"ok\"}\n")
			want, err := collect(strings.NewReader(string(input)))
			Expect(err).NotTo(HaveOccurred())
			Expect(want).To(HaveLen(3))

			for i := 0; i <= len(input); i++ {
				got, err := collect(&chunkReader{chunks: [][]byte{input[:i], input[i:]}})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want), "split at byte %d", i)
			}

			got, err := collect(iotest.OneByteReader(strings.NewReader(string(input))), WithChunkSize(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		})

		It("keeps going after malformed frames", func() {
			input := "data: Connected\n" +
				"data: {not valid json\n" +
				"data: plain text\n" +
				"data: {\"type\":\"final_answer\",\"content\":\"done\"}\n"
			got, err := collect(strings.NewReader(input))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Type).To(Equal("final_answer"))
		})

		It("continues after handler errors and panics", func() {
			obs := &countingObserver{}
			input := "data: {\"type\":\"thought\"}\ndata: {\"type\":\"action\"}\ndata: {\"type\":\"observation\"}\n"

			var seen []string
			err := Consume(context.Background(), strings.NewReader(input), func(eventType string, _ Payload) error {
				seen = append(seen, eventType)
				switch eventType {
				case "thinking":
					return errors.New("render failed")
				case "action":
					panic("handler bug")
				}
				return nil
			}, WithObserver(obs))

			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]string{"thinking", "action", "observation"}))
			Expect(obs.failed).To(Equal([]string{"thinking", "action"}))
		})

		It("stops handing out events once the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			var seen []string
			err := Consume(ctx, strings.NewReader(endToEnd), func(eventType string, _ Payload) error {
				seen = append(seen, eventType)
				cancel()
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]string{"thinking"}))
		})

		It("keeps concurrent streams independent", func() {
			a := NewReader(strings.NewReader("event: foo\n"))
			b := NewReader(strings.NewReader(`data: {"content":"b"}` + "\n"))

			_, err := a.Next()
			Expect(err).NotTo(HaveOccurred())

			ev, err := b.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal(DefaultEventType))
		})
	})
})

var _ = Describe("State", func() {
	It("has readable names", func() {
		Expect(StateIdle.String()).To(Equal("idle"))
		Expect(StateOpen.String()).To(Equal("open"))
		Expect(StateClosed.String()).To(Equal("closed"))
		Expect(StateErrored.String()).To(Equal("errored"))
	})
})
