package recorder_test

import (
	"context"
	"encoding/json"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/recorder"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
	testutils "github.com/papercomputeco/switchboard/pkg/utils/test"
)

func contentPayload(s string) sse.Payload {
	return sse.Payload{Content: s, Fields: map[string]any{"content": s}}
}

var _ = Describe("Pool", func() {
	var (
		ctx       context.Context
		driver    *testutils.FlakyDriver
		publisher *testutils.MockPublisher
		pool      *recorder.Pool
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = testutils.NewFlakyDriver()
		publisher = testutils.NewMockPublisher()

		var err error
		pool, err = recorder.NewPool(&recorder.Config{
			Driver:    driver,
			Publisher: publisher,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pool.Close()
	})

	It("requires a driver", func() {
		_, err := recorder.NewPool(&recorder.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Begin", func() {
		It("stores a new run", func() {
			run, err := pool.Begin(ctx, storage.RunKindAgent, "researcher", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(run.ID).NotTo(BeEmpty())

			got, err := driver.GetRun(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TargetID).To(Equal("researcher"))
			Expect(got.Input).To(Equal("hello"))
		})
	})

	Describe("Handler", func() {
		It("stores and publishes events in arrival order", func() {
			run, err := pool.Begin(ctx, storage.RunKindWorkflow, "wf-1", "")
			Expect(err).NotTo(HaveOccurred())

			handle := pool.Handler(run)
			for i := range 5 {
				Expect(handle("thinking", contentPayload(fmt.Sprintf("step %d", i)))).To(Succeed())
			}
			Expect(handle("final_answer", contentPayload("done"))).To(Succeed())
			pool.Close()

			events, err := driver.Events(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(6))
			for i, ev := range events {
				Expect(ev.Seq).To(Equal(int64(i)))
			}
			Expect(events[5].Type).To(Equal("final_answer"))
			Expect(events[5].Payload).To(MatchJSON(`{"content":"done"}`))

			published := publisher.Events()
			Expect(published).To(HaveLen(6))
			for i, ev := range published {
				Expect(ev.Seq).To(Equal(int64(i)))
				Expect(ev.Run.ID).To(Equal(run.ID))
				Expect(ev.Run.Kind).To(Equal("workflow"))
			}
		})

		It("numbers each run independently", func() {
			a, err := pool.Begin(ctx, storage.RunKindAgent, "a", "")
			Expect(err).NotTo(HaveOccurred())
			b, err := pool.Begin(ctx, storage.RunKindAgent, "b", "")
			Expect(err).NotTo(HaveOccurred())

			ha, hb := pool.Handler(a), pool.Handler(b)
			Expect(ha("message", contentPayload("1"))).To(Succeed())
			Expect(hb("message", contentPayload("1"))).To(Succeed())
			Expect(ha("message", contentPayload("2"))).To(Succeed())
			pool.Close()

			eventsA, err := driver.Events(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(eventsA).To(HaveLen(2))
			Expect(eventsA[1].Seq).To(Equal(int64(1)))

			eventsB, err := driver.Events(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(eventsB).To(HaveLen(1))
			Expect(eventsB[0].Seq).To(Equal(int64(0)))
		})

		It("records error payloads", func() {
			run, err := pool.Begin(ctx, storage.RunKindAgent, "a", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(pool.Handler(run)(sse.ErrorEventType, sse.NewErrorPayload("boom"))).To(Succeed())
			pool.Close()

			events, err := driver.Events(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			var body map[string]any
			Expect(json.Unmarshal(events[0].Payload, &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("error", "boom"))
		})

		It("skips publishing when storage fails", func() {
			driver.FailAppend = true
			run, err := pool.Begin(ctx, storage.RunKindAgent, "a", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(pool.Handler(run)("message", contentPayload("x"))).To(Succeed())
			pool.Close()

			Expect(publisher.Events()).To(BeEmpty())
		})

		It("keeps storing when publishing fails", func() {
			publisher.FailPublish = true
			run, err := pool.Begin(ctx, storage.RunKindAgent, "a", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(pool.Handler(run)("message", contentPayload("x"))).To(Succeed())
			pool.Close()

			events, err := driver.Events(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})
	})

	Describe("Enqueue", func() {
		It("drops jobs after Close", func() {
			run, err := pool.Begin(ctx, storage.RunKindAgent, "a", "")
			Expect(err).NotTo(HaveOccurred())

			pool.Close()
			Expect(pool.Enqueue(recorder.Job{Run: run})).To(BeFalse())
			Expect(pool.Dropped()).To(Equal(int64(1)))
			Expect(pool.Handler(run)("message", contentPayload("late"))).To(HaveOccurred())
		})

		It("closes idempotently", func() {
			pool.Close()
			pool.Close()
		})
	})
})
