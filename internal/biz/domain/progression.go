package domain

import "math"

// Profile represents a user's progression record.
type Profile struct {
	JID   string
	XP    int
	Level int
	Title string
}

// LevelForXP computes the level reached at a given XP total.
// The curve is quadratic: level n requires n^2 * 100 XP.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Sqrt(float64(xp) / 100.0))
}

// TitleForLevel assigns the display title for a level band.
func TitleForLevel(level int) string {
	switch {
	case level >= 50:
		return "Legend"
	case level >= 30:
		return "Master"
	case level >= 20:
		return "Veteran"
	case level >= 10:
		return "Regular"
	case level >= 5:
		return "Member"
	default:
		return "Newcomer"
	}
}

// AddXP adds points to the profile and recomputes level and title.
// It reports whether the award crossed a level boundary.
func (p *Profile) AddXP(points int) bool {
	if points <= 0 {
		return false
	}
	p.XP += points
	level := LevelForXP(p.XP)
	leveled := level > p.Level
	p.Level = level
	p.Title = TitleForLevel(level)
	return leveled
}
