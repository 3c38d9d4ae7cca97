package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/VissentvNoord/lobby-system/internal/coordinator"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
)

const usage = `commands:
  create <name> [max] [private] [mode=<m>]
  join <code> | joinid <id> | quick | list
  leave | delete | start
  mode <game-mode> | name <display-name>
  kick <player-id> | migrate <player-id>
  say <text> | whoami | help | quit`

// Sender pushes a payload over the relay session.
type Sender interface {
	Send(ctx context.Context, to string, v any) error
}

var errQuit = errors.New("quit")

type shell struct {
	c     *coordinator.Coordinator
	relay Sender
	out   io.Writer
}

// run reads commands from in until EOF, quit or ctx is done.
func (s *shell) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(s.out, usage)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			err := s.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return
			}
			if err != nil {
				fmt.Fprintf(s.out, "error [%s]: %v\n", lobbyerr.KindOf(err), err)
			}
		}
	}
}

func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, usage)
		return nil
	case "quit", "exit":
		return errQuit
	case "whoami":
		sess := s.c.Session()
		fmt.Fprintf(s.out, "%s (%s) role=%s\n", sess.PlayerName, sess.PlayerID, sess.Role)
		return nil
	case "create":
		return s.create(ctx, args)
	case "join":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		_, err := s.c.JoinByCode(ctx, args[0])
		return err
	case "joinid":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		_, err := s.c.JoinByID(ctx, args[0])
		return err
	case "quick":
		_, err := s.c.QuickJoin(ctx)
		return err
	case "list":
		_, err := s.c.ListLobbies(ctx)
		return err
	case "leave":
		return s.c.Leave(ctx)
	case "delete":
		if err := s.c.Delete(ctx); err != nil {
			return err
		}
		return s.c.Leave(ctx)
	case "start":
		_, err := s.c.StartSession(ctx)
		return err
	case "mode":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		_, err := s.c.UpdateGameMode(ctx, strings.Join(args, " "))
		return err
	case "name":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		_, err := s.c.UpdatePlayerName(ctx, strings.Join(args, " "))
		return err
	case "kick":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		_, err := s.c.KickPlayer(ctx, args[0])
		return err
	case "migrate":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		_, err := s.c.MigrateHost(ctx, args[0])
		return err
	case "say":
		if err := need(cmd, args, 1); err != nil {
			return err
		}
		if s.relay == nil {
			return lobbyerr.New(lobbyerr.KindRelayAllocation, cmd, "no relay session")
		}
		return s.relay.Send(ctx, "", map[string]string{"text": strings.Join(args, " ")})
	}
	return lobbyerr.New(lobbyerr.KindValidation, cmd, "unknown command, try help")
}

func (s *shell) create(ctx context.Context, args []string) error {
	if err := need("create", args, 1); err != nil {
		return err
	}
	name, maxPlayers := args[0], 0
	var opts []coordinator.CreateOption
	for _, a := range args[1:] {
		switch {
		case a == "private":
			opts = append(opts, coordinator.Private())
		case strings.HasPrefix(a, "mode="):
			opts = append(opts, coordinator.WithGameMode(strings.TrimPrefix(a, "mode=")))
		default:
			n, err := strconv.Atoi(a)
			if err != nil {
				return lobbyerr.New(lobbyerr.KindValidation, "create", "unexpected argument "+strconv.Quote(a))
			}
			maxPlayers = n
		}
	}
	_, err := s.c.CreateLobby(ctx, name, maxPlayers, opts...)
	return err
}

func need(cmd string, args []string, n int) error {
	if len(args) < n {
		return lobbyerr.New(lobbyerr.KindValidation, cmd, fmt.Sprintf("needs %d argument(s)", n))
	}
	return nil
}
