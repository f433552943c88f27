package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "ingest.doc-1.status", Subject(Event{Type: EventStatus, DocumentID: "doc-1"}))
	assert.Equal(t, "ingest.doc-1.complete", Subject(Event{Type: EventComplete, DocumentID: "doc-1"}))
}

func TestNATSPublisher_PipelineEvents(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe("ingest.doc-n.>", msgs)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, nc.Flush())

	o := newOrchestrator(t, Deps{Publisher: NewNATSPublisher(nc)}, Config{})
	_, err = o.Run(context.Background(), Task{ID: "doc-n", Name: "a.txt", Data: []byte(paragraphs(2))})
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	var subjects []string
	var final Event
	timeout := time.After(5 * time.Second)
	for final.Type != EventComplete {
		select {
		case m := <-msgs:
			subjects = append(subjects, m.Subject)
			var ev Event
			require.NoError(t, json.Unmarshal(m.Data, &ev))
			if ev.Type.Terminal() {
				final = ev
			}
		case <-timeout:
			t.Fatalf("missing complete event, got %v", subjects)
		}
	}

	assert.Equal(t, "ingest.doc-n.status", subjects[0])
	assert.Equal(t, "ingest.doc-n.complete", subjects[len(subjects)-1])
	require.NotNil(t, final.Document)
	require.NotEmpty(t, final.Document.Chunks)
	assert.Nil(t, final.Document.Chunks[0].Embedding)
	assert.Empty(t, final.Document.CleanedText)
}

func TestNATSPublisher_ClosedConnection(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	err = NewNATSPublisher(nc).Publish(context.Background(), Event{Type: EventStatus, DocumentID: "x"})
	assert.Error(t, err)

	// Publish failures never fail the document.
	o := newOrchestrator(t, Deps{Publisher: NewNATSPublisher(nc)}, Config{})
	_, err = o.Run(context.Background(), Task{Name: "a.txt", Data: []byte(paragraphs(1))})
	assert.NoError(t, err)
}
