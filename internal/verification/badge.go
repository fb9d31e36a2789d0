package verification

// Badge is the display label and color for a status.
type Badge struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

var badges = map[Status]Badge{
	StatusPending:    {Status: StatusPending, Label: "Pending", Color: "gray"},
	StatusSent:       {Status: StatusSent, Label: "Sent", Color: "blue"},
	StatusInProgress: {Status: StatusInProgress, Label: "In Progress", Color: "yellow"},
	StatusCompleted:  {Status: StatusCompleted, Label: "Completed", Color: "green"},
	StatusExpired:    {Status: StatusExpired, Label: "Expired", Color: "orange"},
	StatusFailed:     {Status: StatusFailed, Label: "Failed", Color: "red"},
}

// Badge returns the badge for s. Unknown statuses render as a gray "Unknown".
func (s Status) Badge() Badge {
	if b, ok := badges[s]; ok {
		return b
	}
	return Badge{Status: s, Label: "Unknown", Color: "gray"}
}

// AllBadges returns the badges of every known status in display order.
func AllBadges() []Badge {
	out := make([]Badge, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, s.Badge())
	}
	return out
}
