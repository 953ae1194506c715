package core

import "time"

// dailyQuotes rotate through the status line on quiet days.
var dailyQuotes = []string{
	"Every day is a fresh start.",
	"Small steps add up.",
	"Make today count.",
	"One thing at a time.",
	"Done is better than perfect.",
	"Enjoy the little things.",
	"Today is a good day to try.",
	"Keep it simple.",
	"Progress, not perfection.",
	"Be where your feet are.",
	"Start where you are.",
	"The best time is now.",
	"Less, but better.",
	"Breathe. It's just a day.",
}

// quoteForDay selects the quote for a date deterministically so every
// process agrees without coordination.
func quoteForDay(day time.Time) string {
	return dailyQuotes[day.YearDay()%len(dailyQuotes)]
}
