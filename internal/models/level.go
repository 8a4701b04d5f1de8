package models

import "strings"

type Level string

const (
	LevelFerrum   Level = "ferrum"
	LevelArgentum Level = "argentum"
	LevelAurum    Level = "aurum"
	LevelPlatinum Level = "platinum"
)

var Levels = []Level{LevelFerrum, LevelArgentum, LevelAurum, LevelPlatinum}

func (l Level) Rank() int {
	switch l {
	case LevelFerrum:
		return 0
	case LevelArgentum:
		return 1
	case LevelAurum:
		return 2
	case LevelPlatinum:
		return 3
	default:
		return -1
	}
}

func (l Level) Valid() bool {
	return l.Rank() >= 0
}

func (l Level) Less(other Level) bool {
	return l.Rank() < other.Rank()
}

// ParseLevel accepts any casing and surrounding whitespace.
func ParseLevel(raw string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(raw)))
	return l, l.Valid()
}

func (l Level) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}
