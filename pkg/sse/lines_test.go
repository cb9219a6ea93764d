package sse

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pushAll feeds chunks through a fresh LineBuffer and collects every line.
func pushAll(chunks ...[]byte) ([]string, string) {
	b := NewLineBuffer()
	var lines []string
	for _, c := range chunks {
		lines = append(lines, b.Push(c)...)
	}
	return lines, b.Pending()
}

var _ = Describe("LineBuffer", func() {
	It("returns complete lines and retains the unterminated tail", func() {
		lines, pending := pushAll([]byte("event: a\ndata: {}\npart"))
		Expect(lines).To(Equal([]string{"event: a", "data: {}"}))
		Expect(pending).To(Equal("part"))
	})

	It("prefixes a retained tail to the next chunk", func() {
		lines, pending := pushAll([]byte("data: {\"con"), []byte("tent\":\"x\"}\n"))
		Expect(lines).To(Equal([]string{`data: {"content":"x"}`}))
		Expect(pending).To(BeEmpty())
	})

	It("keeps empty lines between frames", func() {
		lines, _ := pushAll([]byte("a\n\nb\n"))
		Expect(lines).To(Equal([]string{"a", "", "b"}))
	})

	It("ignores empty chunks", func() {
		b := NewLineBuffer()
		Expect(b.Push(nil)).To(BeEmpty())
		Expect(b.Pending()).To(BeEmpty())
	})

	It("carries a multi-byte character split across chunks", func() {
		euro := []byte("€") // e2 82 ac
		lines, _ := pushAll(
			append([]byte("data: "), euro[:1]...),
			euro[1:2],
			append(euro[2:], '\n'),
		)
		Expect(lines).To(Equal([]string{"data: €"}))
	})

	It("replaces ill-formed bytes", func() {
		lines, _ := pushAll([]byte("a\xffb\n"))
		Expect(lines).To(Equal([]string{"a\uFFFDb"}))
	})

	It("discards the tail on demand", func() {
		b := NewLineBuffer()
		b.Push([]byte("data: {\"x\":1}"))
		Expect(b.Discard()).To(Equal(`data: {"x":1}`))
		Expect(b.Pending()).To(BeEmpty())
	})

	Describe("chunk boundary independence", func() {
		input := []byte("event: thinking\ndata: {\"content\":\"héllo wörld ✓ 日本\"}\n\n" +
			"data: {\"type\":\"final_answer\",\"content\":\"🎉 done\"}\n\ntrailing")

		whole, wholePending := pushAll(input)

		It("yields the same lines for every two-way split", func() {
			for i := 0; i <= len(input); i++ {
				lines, pending := pushAll(input[:i], input[i:])
				Expect(lines).To(Equal(whole), "split at byte %d", i)
				Expect(pending).To(Equal(wholePending), "split at byte %d", i)
			}
		})

		It("yields the same lines when fed one byte at a time", func() {
			chunks := make([][]byte, 0, len(input))
			for i := range input {
				chunks = append(chunks, input[i:i+1])
			}
			lines, pending := pushAll(chunks...)
			Expect(lines).To(Equal(whole))
			Expect(pending).To(Equal(wholePending))
			Expect(strings.Join(lines, "\n")).To(ContainSubstring("日本"))
		})

		It("yields the same lines for three-way splits", func() {
			for i := 0; i <= len(input); i += 3 {
				for j := i; j <= len(input); j += 5 {
					lines, _ := pushAll(input[:i], input[i:j], input[j:])
					Expect(lines).To(Equal(whole), "split at bytes %d and %d", i, j)
				}
			}
		})
	})
})
