package streak

type Milestone struct {
	Days        int    `json:"days"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// Milestones is ordered by Days.
var Milestones = []Milestone{
	{Days: 7, Title: "Dedicated Analyzer", Description: "7 days strong!", Icon: "🔥", Color: "#FF6B35"},
	{Days: 14, Title: "Consistent Tracker", Description: "2 weeks of dedication!", Icon: "⚡", Color: "#FF8E53"},
	{Days: 30, Title: "Muscle Expert", Description: "30 days of progress!", Icon: "💪", Color: "#FFB347"},
	{Days: 60, Title: "Fitness Champion", Description: "2 months of commitment!", Icon: "🏆", Color: "#FFD700"},
	{Days: 100, Title: "Streak Master", Description: "100 days legendary!", Icon: "👑", Color: "#FF4500"},
}

// MilestoneAt returns the milestone reached exactly at days.
func MilestoneAt(days int) (Milestone, bool) {
	for _, m := range Milestones {
		if m.Days == days {
			return m, true
		}
	}
	return Milestone{}, false
}

// NextMilestone returns the smallest milestone above count.
func NextMilestone(count int) (Milestone, bool) {
	for _, m := range Milestones {
		if count < m.Days {
			return m, true
		}
	}
	return Milestone{}, false
}

// AchievedMilestones returns the milestones at or below count, ascending.
func AchievedMilestones(count int) []Milestone {
	out := []Milestone{}
	for _, m := range Milestones {
		if count >= m.Days {
			out = append(out, m)
		}
	}
	return out
}
