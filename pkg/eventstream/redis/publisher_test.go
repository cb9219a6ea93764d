package redis_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/switchboard/pkg/eventstream"
	"github.com/papercomputeco/switchboard/pkg/eventstream/redis"
)

type fakeClient struct {
	added  []*goredis.XAddArgs
	err    error
	closed bool
}

func (c *fakeClient) XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd {
	cmd := goredis.NewStringCmd(ctx, "xadd", a.Stream)
	if c.err != nil {
		cmd.SetErr(c.err)
		return cmd
	}
	c.added = append(c.added, a)
	cmd.SetVal("1-0")
	return cmd
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		client *fakeClient
		p      *redis.Publisher
	)

	BeforeEach(func() {
		client = &fakeClient{}
		p = redis.NewPublisherWithClient(client, "switchboard.run.events", 1000)
	})

	It("appends the envelope to the stream", func() {
		ev := eventstream.NewRunEvent(eventstream.RunRef{ID: "run-1"}, 2, "observation", json.RawMessage(`{"content":"42"}`))
		Expect(p.Publish(context.Background(), ev)).To(Succeed())

		Expect(client.added).To(HaveLen(1))
		args := client.added[0]
		Expect(args.Stream).To(Equal("switchboard.run.events"))
		Expect(args.MaxLen).To(Equal(int64(1000)))
		Expect(args.Approx).To(BeTrue())

		values := args.Values.(map[string]any)
		Expect(values).To(HaveKeyWithValue("run_id", "run-1"))
		Expect(values).To(HaveKeyWithValue("type", "observation"))

		var decoded eventstream.RunEvent
		Expect(json.Unmarshal(values["data"].([]byte), &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(ev.EventID))
	})

	It("returns ErrNilRunEvent for nil events", func() {
		Expect(p.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilRunEvent))
	})

	It("wraps client failures", func() {
		client.err = errors.New("READONLY")
		err := p.Publish(context.Background(), eventstream.NewRunEvent(eventstream.RunRef{ID: "r"}, 0, "message", nil))
		Expect(err).To(MatchError(ContainSubstring("READONLY")))
	})

	It("requires an address", func() {
		_, err := redis.NewPublisher(context.Background(), redis.Config{Stream: "s"})
		Expect(err).To(HaveOccurred())
	})

	It("closes the client", func() {
		Expect(p.Close()).To(Succeed())
		Expect(client.closed).To(BeTrue())
	})
})
