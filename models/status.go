package models

// GameStatus is the progress state of a tracked game or DLC.
type GameStatus string

const (
	StatusPlaying         GameStatus = "Playing"
	StatusBacklog         GameStatus = "Backlog"
	StatusCompleted       GameStatus = "Completed"
	StatusDropped         GameStatus = "Dropped"
	StatusPlatinum        GameStatus = "Platinum"
	StatusPlatinumPending GameStatus = "PlatinumPending"
)

// GameStatuses lists every status a game may carry.
var GameStatuses = []GameStatus{
	StatusPlaying,
	StatusBacklog,
	StatusCompleted,
	StatusDropped,
	StatusPlatinum,
	StatusPlatinumPending,
}

// DlcStatuses is the subset used for DLC records.
var DlcStatuses = []GameStatus{
	StatusPlaying,
	StatusBacklog,
	StatusCompleted,
	StatusDropped,
}

func (s GameStatus) Valid() bool {
	for _, v := range GameStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s GameStatus) ValidForDlc() bool {
	for _, v := range DlcStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Platform is where the user owns or plays a game.
type Platform string

const (
	PlatformSteam       Platform = "Steam"
	PlatformGamepass    Platform = "Gamepass"
	PlatformJackSparrow Platform = "Jack Sparrow"
	PlatformOther       Platform = "Other"
)

var Platforms = []Platform{PlatformSteam, PlatformGamepass, PlatformJackSparrow, PlatformOther}

func (p Platform) Valid() bool {
	for _, v := range Platforms {
		if p == v {
			return true
		}
	}
	return false
}
