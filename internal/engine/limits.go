package engine

import (
	"time"

	"github.com/VissentvNoord/lobby-system/internal/joincode"
)

const (
	MinPlayers     = 1
	MaxPlayers     = 100
	MaxNameLength  = 64
	CodeLength     = joincode.Length
	DefaultTTL     = 30 * time.Second
	QueryLimit     = 25
	maxDataEntries = 32
)
