package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"
)

// capacityHub fans capacity updates out to the SSE subscribers of an
// event. Each subscriber owns a buffered channel; a slow subscriber
// drops updates rather than blocking the claim path.
var capacityHub = struct {
	sync.Mutex
	subscribers map[string]map[chan map[string]any]struct{}
}{
	subscribers: make(map[string]map[chan map[string]any]struct{}),
}

func subscribeUpdates(eventID string) chan map[string]any {
	ch := make(chan map[string]any, 10)
	capacityHub.Lock()
	defer capacityHub.Unlock()
	subs := capacityHub.subscribers[eventID]
	if subs == nil {
		subs = make(map[chan map[string]any]struct{})
		capacityHub.subscribers[eventID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

func unsubscribeUpdates(eventID string, ch chan map[string]any) {
	capacityHub.Lock()
	defer capacityHub.Unlock()
	subs := capacityHub.subscribers[eventID]
	delete(subs, ch)
	if len(subs) == 0 {
		delete(capacityHub.subscribers, eventID)
	}
}

func publishUpdate(eventID string, update map[string]any) {
	capacityHub.Lock()
	defer capacityHub.Unlock()
	for ch := range capacityHub.subscribers[eventID] {
		select {
		case ch <- update:
		default:
			log.Printf("Warning: dropping capacity update for a slow subscriber of event %s", eventID)
		}
	}
}

// broadcastCapacity pushes the event's fresh capacity status to SSE
// subscribers. The status is re-read from the store on every push;
// nothing capacity-related is cached across requests.
func broadcastCapacity(ctx context.Context, eventID string) {
	status, err := CapacityStatus(ctx, eventID)
	if err != nil {
		log.Printf("broadcastCapacity: %v", err)
		return
	}

	publishUpdate(eventID, map[string]any{
		"type":      "capacity_update",
		"eventid":   status.EventID,
		"issued":    status.Issued,
		"remaining": status.Remaining,
	})
}

// GET /api/events/event/:eventid/updates
func EventUpdates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventid")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updatesChannel := subscribeUpdates(eventID)
	defer unsubscribeUpdates(eventID, updatesChannel)

	for {
		select {
		case update := <-updatesChannel:
			jsonUpdate, _ := json.Marshal(update)
			fmt.Fprintf(w, "data: %s\n\n", jsonUpdate)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
