package logger_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("NewLoggerWithWriters", func() {
		It("writes structured fields", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf)
			l.Info("hello", zap.String("key", "value"))

			output := buf.String()
			Expect(output).To(ContainSubstring("hello"))
			Expect(output).To(ContainSubstring(`"key": "value"`))
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(true, &buf)
			l.Debug("debug msg")

			Expect(buf.String()).To(ContainSubstring("debug msg"))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf)
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf1, &buf2)
			l.Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})

		It("binds fields to child loggers", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf).With(zap.String("run_id", "r1"))
			l.Info("started")

			Expect(buf.String()).To(ContainSubstring(`"run_id": "r1"`))
		})
	})

	Describe("Nop", func() {
		It("does not panic on any method", func() {
			l := logger.Nop()
			Expect(func() {
				l.Debug("msg")
				l.Info("msg")
				l.Warn("msg")
				l.Error("msg")
				l.With(zap.String("key", "value")).Info("msg")
			}).NotTo(Panic())
		})
	})
})
