package commsutil

import "fmt"

// Default COMMS subjects.
const (
	// SubjectQuery is the request/reply subject answered by the natural-language dispatcher.
	SubjectQuery = "wkc.query.v1"
	// SubjectChangeEvent receives every catalog change event.
	SubjectChangeEvent = "wkc.events"
)

// BuildChangeSubject builds a granular change event subject, e.g.
// "wkc.events.orders.status_changed".
func BuildChangeSubject(prefix, collection, action string) string {
	if prefix == "" {
		prefix = SubjectChangeEvent
	}
	return fmt.Sprintf("%s.%s.%s", prefix, collection, action)
}
