package types

// UnknownDate marks a record whose first date could not be determined.
const UnknownDate = ""

// StatusAvailable is the only status that counts as open for booking.
const StatusAvailable = "Available"

type EventRecord struct {
	Title       string `json:"title"`
	DatesDetail string `json:"dates_detail"`
	Status      string `json:"status"`
}

type EnrichedEventRecord struct {
	EventRecord
	FirstDate string `json:"first_date"`
}

// HasDate reports whether FirstDate holds a resolved calendar date.
func (r EnrichedEventRecord) HasDate() bool {
	return r.FirstDate != UnknownDate
}

type MonitorState struct {
	ClassCount int `json:"class_count"`
}

type Notification struct {
	Message  string `json:"message"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Rule     string `json:"-"`
}
