// Package storagetest holds behavior shared by every storage.Driver test
// suite.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/storage"
)

// NewRun returns a run started at the given offset from a fixed epoch.
func NewRun(id string, offset time.Duration) *storage.Run {
	return &storage.Run{
		ID:        id,
		Kind:      storage.RunKindAgent,
		TargetID:  "agent-" + id,
		Input:     "hello",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Add(offset),
	}
}

// NewEvent returns an event of runID with the given sequence number.
func NewEvent(runID string, seq int64, eventType string) *storage.RecordedEvent {
	payload, _ := json.Marshal(map[string]any{"content": eventType})
	return &storage.RecordedEvent{
		RunID:      runID,
		Seq:        seq,
		Type:       eventType,
		Payload:    payload,
		RecordedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Add(time.Duration(seq) * time.Second),
	}
}

// DriverBehavior registers the specs every driver must satisfy. driver is
// called inside each spec and must return a fresh, empty driver.
func DriverBehavior(driver func() storage.Driver) {
	var (
		d   storage.Driver
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		d = driver()
	})

	Describe("PutRun", func() {
		It("stores and retrieves a run", func() {
			run := NewRun("r1", 0)
			Expect(d.PutRun(ctx, run)).To(Succeed())

			got, err := d.GetRun(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("r1"))
			Expect(got.Kind).To(Equal(storage.RunKindAgent))
			Expect(got.TargetID).To(Equal("agent-r1"))
			Expect(got.Input).To(Equal("hello"))
			Expect(got.StartedAt.Equal(run.StartedAt)).To(BeTrue())
		})

		It("ignores a second put of the same run", func() {
			Expect(d.PutRun(ctx, NewRun("r1", 0))).To(Succeed())

			again := NewRun("r1", 0)
			again.TargetID = "other"
			Expect(d.PutRun(ctx, again)).To(Succeed())

			got, err := d.GetRun(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TargetID).To(Equal("agent-r1"))
		})

		It("rejects a nil run", func() {
			Expect(d.PutRun(ctx, nil)).To(HaveOccurred())
		})
	})

	Describe("GetRun", func() {
		It("returns NotFoundError for unknown runs", func() {
			_, err := d.GetRun(ctx, "missing")
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal("missing"))
		})
	})

	Describe("ListRuns", func() {
		BeforeEach(func() {
			Expect(d.PutRun(ctx, NewRun("old", 0))).To(Succeed())
			Expect(d.PutRun(ctx, NewRun("new", 2*time.Hour))).To(Succeed())
			Expect(d.PutRun(ctx, NewRun("mid", time.Hour))).To(Succeed())
		})

		It("lists runs most recent first", func() {
			runs, err := d.ListRuns(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(3))
			Expect([]string{runs[0].ID, runs[1].ID, runs[2].ID}).To(Equal([]string{"new", "mid", "old"}))
		})

		It("applies the limit", func() {
			runs, err := d.ListRuns(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
			Expect(runs[0].ID).To(Equal("new"))
		})
	})

	Describe("Events", func() {
		It("returns events ordered by sequence", func() {
			Expect(d.PutRun(ctx, NewRun("r1", 0))).To(Succeed())
			Expect(d.AppendEvent(ctx, NewEvent("r1", 1, "thinking"))).To(Succeed())
			Expect(d.AppendEvent(ctx, NewEvent("r1", 0, "message"))).To(Succeed())
			Expect(d.AppendEvent(ctx, NewEvent("r1", 2, "final_answer"))).To(Succeed())

			events, err := d.Events(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(Equal("message"))
			Expect(events[1].Type).To(Equal("thinking"))
			Expect(events[2].Type).To(Equal("final_answer"))
			Expect(events[2].Payload).To(MatchJSON(`{"content":"final_answer"}`))
		})

		It("returns an empty transcript for a run without events", func() {
			Expect(d.PutRun(ctx, NewRun("r1", 0))).To(Succeed())

			events, err := d.Events(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("rejects events for unknown runs", func() {
			err := d.AppendEvent(ctx, NewEvent("ghost", 0, "message"))
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())

			_, err = d.Events(ctx, "ghost")
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})
}
