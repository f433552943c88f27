// Package ingest runs the document pipeline: extract, clean, chunk, embed
// and persist.
//
// Every submitted task runs in its own goroutine and reports through a
// one-way event channel. Zero or more status events are followed by exactly
// one terminal event (complete or error), after which the channel is closed.
//
//	events := orch.Submit(ctx, ingest.Task{Name: "report.pdf", Data: data})
//	for ev := range events {
//	    switch ev.Type {
//	    case ingest.EventStatus:
//	        fmt.Println(ev.Message)
//	    case ingest.EventComplete:
//	        fmt.Println("ready:", len(ev.Document.Chunks), "chunks")
//	    case ingest.EventError:
//	        fmt.Println("failed:", ev.Message)
//	    }
//	}
package ingest
