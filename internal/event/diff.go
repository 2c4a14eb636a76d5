package event

// SeenSet reports whether an event ID has already been notified
type SeenSet interface {
	Has(id string) bool
}

// Diff returns the events whose ID is not in seen, in page order.
// Repeated IDs within current collapse to their first occurrence.
func Diff(seen SeenSet, current []*Event) []*Event {
	newEvents := make([]*Event, 0)
	batch := make(map[string]bool, len(current))

	for _, evt := range current {
		if batch[evt.ID] {
			continue
		}
		batch[evt.ID] = true

		if seen != nil && seen.Has(evt.ID) {
			continue
		}
		newEvents = append(newEvents, evt)
	}

	return newEvents
}

// Dedupe removes repeated IDs keeping the first occurrence
func Dedupe(events []*Event) []*Event {
	return Diff(nil, events)
}
