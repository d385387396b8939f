package wms

import "time"

// dateRange is one half of a chunked fetch window. The upstream API treats
// both bounds as inclusive, so consecutive ranges must not share an instant:
// each chunk starts one second after the previous one ends. Operation times
// carry second resolution, which keeps the union gap-free.
type dateRange struct {
	From time.Time
	To   time.Time
}

// splitRange breaks [from, to] into consecutive inclusive windows of at most
// maxMonths calendar months each. The upstream API rejects wider ranges.
func splitRange(from, to time.Time, maxMonths int) []dateRange {
	if maxMonths <= 0 {
		maxMonths = 6
	}
	if !from.Before(to) {
		return []dateRange{{From: from, To: to}}
	}

	var chunks []dateRange
	cursor := from
	for !cursor.After(to) {
		end := cursor.AddDate(0, maxMonths, 0)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, dateRange{From: cursor, To: end})
		cursor = end.Add(time.Second)
	}
	return chunks
}
