package presenter

import (
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// Log writes snapshots as structured log lines.
type Log struct {
	logger *zap.Logger
}

var _ Presenter = (*Log)(nil)

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("presenter")}
}

func (p *Log) DisplayLobby(l types.Lobby, isHost bool) {
	names := make([]string, len(l.Players))
	for i, pl := range l.Players {
		names[i] = pl.DisplayName()
	}
	p.logger.Info("lobby",
		zap.String("lobby_id", l.ID),
		zap.String("name", l.Name),
		zap.String("code", l.Code),
		zap.Bool("is_host", isHost),
		zap.String("host_id", l.HostID),
		zap.Int("max_players", l.MaxPlayers),
		zap.Strings("players", names),
		zap.String("game_mode", l.GameMode()),
		zap.String("relay_code", l.RelayCode()),
	)
}

func (p *Log) ListLobbies(lobbies []types.Lobby) {
	p.logger.Info("lobbies listed", zap.Int("count", len(lobbies)))
	for _, l := range lobbies {
		p.logger.Info("open lobby",
			zap.String("lobby_id", l.ID),
			zap.String("name", l.Name),
			zap.String("code", l.Code),
			zap.Int("available_slots", l.AvailableSlots()),
		)
	}
}
