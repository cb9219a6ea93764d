package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/orchestrator"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/workflow"
)

type received struct {
	eventType string
	payload   sse.Payload
}

type recorder struct {
	mu     sync.Mutex
	events []received
}

func (r *recorder) handle(eventType string, payload sse.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, received{eventType: eventType, payload: payload})
	return nil
}

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		captured capturedRequest
		respond  func(w http.ResponseWriter)
		rec      *recorder
	)

	BeforeEach(func() {
		rec = &recorder{}
		captured = capturedRequest{}
		respond = func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: Connected\n\nevent: thinking\ndata: {\"content\":\"hmm\"}\n\n")
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured.method = r.Method
			captured.path = r.URL.Path
			captured.header = r.Header.Clone()
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &captured.body)
			respond(w)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func(mode orchestrator.Mode, apiKey string) *orchestrator.Client {
		c, err := orchestrator.NewClient(orchestrator.Config{
			BaseURL:    server.URL,
			GatewayURL: server.URL + "/",
			Mode:       mode,
			APIKey:     apiKey,
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("NewClient", func() {
		It("defaults to direct mode", func() {
			c, err := orchestrator.NewClient(orchestrator.Config{BaseURL: "http://localhost:8000"})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Mode()).To(Equal(orchestrator.ModeDirect))
		})

		It("requires a base URL for the selected mode", func() {
			_, err := orchestrator.NewClient(orchestrator.Config{
				BaseURL: "http://localhost:8000",
				Mode:    orchestrator.ModeGateway,
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects unknown modes", func() {
			_, err := orchestrator.NewClient(orchestrator.Config{BaseURL: "http://x", Mode: "proxy"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseMode", func() {
		It("accepts direct, gateway, and empty", func() {
			m, err := orchestrator.ParseMode("")
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(orchestrator.ModeDirect))

			m, err = orchestrator.ParseMode("gateway")
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(orchestrator.ModeGateway))

			_, err = orchestrator.ParseMode("other")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ExecuteAgent", func() {
		It("posts to the direct agent stream endpoint", func() {
			c := newClient(orchestrator.ModeDirect, "")
			err := c.ExecuteAgent(context.Background(), "agent-1", orchestrator.AgentRequest{
				Message:   "hello",
				SessionID: "s-1",
			}, rec.handle)
			Expect(err).NotTo(HaveOccurred())

			Expect(captured.method).To(Equal(http.MethodPost))
			Expect(captured.path).To(Equal("/api/v1/agents/agent-1/execute/stream"))
			Expect(captured.header.Get("Accept")).To(Equal("text/event-stream"))
			Expect(captured.header.Get("Authorization")).To(BeEmpty())
			Expect(captured.header.Get("X-Switchboard-Mode")).To(BeEmpty())
			Expect(captured.body).To(HaveKeyWithValue("message", "hello"))
			Expect(captured.body).To(HaveKeyWithValue("session_id", "s-1"))
		})

		It("posts to the gateway endpoint with credentials", func() {
			c := newClient(orchestrator.ModeGateway, "secret")
			err := c.ExecuteAgent(context.Background(), "agent-1", orchestrator.AgentRequest{Message: "hi"}, rec.handle)
			Expect(err).NotTo(HaveOccurred())

			Expect(captured.path).To(Equal("/gateway/agents/agent-1/stream"))
			Expect(captured.header.Get("Authorization")).To(Equal("Bearer secret"))
			Expect(captured.header.Get("X-Switchboard-Mode")).To(Equal("gateway"))
		})

		It("delivers normalized events and skips the connect notice", func() {
			c := newClient(orchestrator.ModeDirect, "")
			Expect(c.ExecuteAgent(context.Background(), "a", orchestrator.AgentRequest{Message: "m"}, rec.handle)).To(Succeed())

			Expect(rec.events).To(HaveLen(1))
			Expect(rec.events[0].eventType).To(Equal("thinking"))
			Expect(rec.events[0].payload.Content).To(Equal("hmm"))
		})

		It("resolves gateway body types", func() {
			respond = func(w http.ResponseWriter) {
				_, _ = io.WriteString(w, "data: {\"type\":\"thought\",\"content\":\"hi\"}\n\n"+
					"data: {\"type\":\"final_answer\",\"answer\":\"done\"}\n\n")
			}

			c := newClient(orchestrator.ModeGateway, "")
			Expect(c.ExecuteAgent(context.Background(), "a", orchestrator.AgentRequest{Message: "m"}, rec.handle)).To(Succeed())

			Expect(rec.events).To(HaveLen(2))
			Expect(rec.events[0].eventType).To(Equal("thinking"))
			Expect(rec.events[1].eventType).To(Equal("final_answer"))
			Expect(rec.events[1].payload.Content).To(Equal("done"))
		})

		It("delivers exactly one error event for a failed status", func() {
			respond = func(w http.ResponseWriter) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"detail":"boom"}`)
			}

			c := newClient(orchestrator.ModeDirect, "")
			err := c.ExecuteAgent(context.Background(), "a", orchestrator.AgentRequest{Message: "m"}, rec.handle)
			Expect(err).To(HaveOccurred())

			var statusErr *orchestrator.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(statusErr.Message).To(Equal("boom"))

			Expect(rec.events).To(HaveLen(1))
			Expect(rec.events[0].eventType).To(Equal("error"))
			Expect(rec.events[0].payload.String("error")).To(Equal("boom"))
		})

		DescribeTable("error message extraction",
			func(status int, body, expected string) {
				respond = func(w http.ResponseWriter) {
					w.WriteHeader(status)
					_, _ = io.WriteString(w, body)
				}

				c := newClient(orchestrator.ModeDirect, "")
				err := c.ExecuteAgent(context.Background(), "a", orchestrator.AgentRequest{}, rec.handle)

				var statusErr *orchestrator.StatusError
				Expect(errors.As(err, &statusErr)).To(BeTrue())
				Expect(statusErr.Message).To(Equal(expected))
				Expect(rec.events).To(HaveLen(1))
			},
			Entry("error field", http.StatusBadRequest, `{"error":"bad input"}`, "bad input"),
			Entry("message field", http.StatusNotFound, `{"message":"no such agent"}`, "no such agent"),
			Entry("detail wins", http.StatusConflict, `{"message":"m","detail":"d"}`, "d"),
			Entry("empty detail falls through", http.StatusConflict, `{"detail":"","error":"e"}`, "e"),
			Entry("non-JSON body", http.StatusBadGateway, `<html>bad gateway</html>`, "HTTP 502"),
			Entry("empty body", http.StatusUnauthorized, ``, "HTTP 401"),
		)

		It("delivers an error event when the backend is unreachable", func() {
			c, err := orchestrator.NewClient(orchestrator.Config{BaseURL: "http://127.0.0.1:1"})
			Expect(err).NotTo(HaveOccurred())

			err = c.ExecuteAgent(context.Background(), "a", orchestrator.AgentRequest{}, rec.handle)
			Expect(err).To(HaveOccurred())

			var statusErr *orchestrator.StatusError
			Expect(errors.As(err, &statusErr)).To(BeFalse())
			Expect(rec.events).To(HaveLen(1))
			Expect(rec.events[0].eventType).To(Equal("error"))
			Expect(rec.events[0].payload.String("error")).NotTo(BeEmpty())
		})

		It("reports open failures by kind", func() {
			respond = func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}

			var kinds []string
			c, err := orchestrator.NewClient(orchestrator.Config{
				BaseURL:       server.URL,
				OnOpenFailure: func(kind string) { kinds = append(kinds, kind) },
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(c.ExecuteAgent(context.Background(), "a", orchestrator.AgentRequest{}, rec.handle)).NotTo(Succeed())
			Expect(kinds).To(Equal([]string{"status"}))
		})
	})

	Describe("ExecuteWorkflow", func() {
		It("posts to the direct workflow endpoint with input and steps", func() {
			c := newClient(orchestrator.ModeDirect, "")
			err := c.ExecuteWorkflow(context.Background(), "wf-1", orchestrator.WorkflowRequest{
				Input: map[string]any{"topic": "go"},
				Steps: []orchestrator.WorkflowStep{{AgentID: "researcher"}},
			}, rec.handle)
			Expect(err).NotTo(HaveOccurred())

			Expect(captured.path).To(Equal("/api/v1/workflows/wf-1/execute/stream"))
			Expect(captured.body).To(HaveKey("input"))
			Expect(captured.body["steps"]).To(HaveLen(1))
		})

		It("uses the gateway workflow endpoint", func() {
			c := newClient(orchestrator.ModeGateway, "")
			Expect(c.ExecuteWorkflow(context.Background(), "wf-1", orchestrator.WorkflowRequest{}, rec.handle)).To(Succeed())

			Expect(captured.path).To(Equal("/gateway/workflows/wf-1/stream"))
			Expect(captured.body).To(HaveKeyWithValue("input", BeEmpty()))
		})
	})
})

var _ = Describe("Stream", func() {
	It("exposes pull access to an opened stream", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "event: action\ndata: {\"type\":\"action_input\",\"content\":\"{}\"}\n")
		}))
		defer server.Close()

		c, err := orchestrator.NewClient(orchestrator.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		stream, err := c.OpenAgent(context.Background(), "a", orchestrator.AgentRequest{Message: "m"})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		Expect(stream.State()).To(Equal(sse.StateOpen))

		ev, err := stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Type).To(Equal("action_input"))

		ev, err = stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
		Expect(stream.State()).To(Equal(sse.StateClosed))
	})

	It("treats a close during a blocked read as a normal end of stream", func() {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: thinking\ndata: {\"content\":\"first\"}\n\n")
			w.(http.Flusher).Flush()
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		c, err := orchestrator.NewClient(orchestrator.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		stream, err := c.OpenAgent(context.Background(), "a", orchestrator.AgentRequest{Message: "m"})
		Expect(err).NotTo(HaveOccurred())

		ev, err := stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Payload.Content).To(Equal("first"))

		go func() {
			defer GinkgoRecover()
			time.Sleep(50 * time.Millisecond)
			Expect(stream.Close()).To(Succeed())
		}()

		ev, err = stream.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(BeNil())
		Expect(stream.State()).To(Equal(sse.StateClosed))
	})

	It("still reports a dropped connection as interrupted", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: {\"content\":\"first\"}\n\n")
			w.(http.Flusher).Flush()
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
		}))
		defer server.Close()

		c, err := orchestrator.NewClient(orchestrator.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		stream, err := c.OpenAgent(context.Background(), "a", orchestrator.AgentRequest{Message: "m"})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()

		err = stream.Dispatch(context.Background(), func(string, sse.Payload) error { return nil })
		Expect(err).To(MatchError(sse.ErrStreamInterrupted))
	})

	It("returns the status error without delivering events", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":"nope"}`)
		}))
		defer server.Close()

		c, err := orchestrator.NewClient(orchestrator.Config{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.OpenWorkflow(context.Background(), "wf", orchestrator.WorkflowRequest{})
		Expect(orchestrator.ErrorMessage(err)).To(Equal("nope"))
	})
})

var _ = Describe("StepsFromWorkflow", func() {
	It("copies agent, name, and dependencies", func() {
		steps := orchestrator.StepsFromWorkflow([]workflow.Step{
			{Index: 0, AgentID: "a", Name: "A"},
			{Index: 1, AgentID: "b", Name: "B", DependsOn: []int{0}},
		})
		Expect(steps).To(HaveLen(2))
		Expect(steps[1].AgentID).To(Equal("b"))
		Expect(steps[1].DependsOn).To(Equal([]int{0}))
	})

	It("returns nil for no steps", func() {
		Expect(orchestrator.StepsFromWorkflow(nil)).To(BeNil())
	})
})
