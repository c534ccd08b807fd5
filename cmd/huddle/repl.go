package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dkeye/Huddle/internal/app/session"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/ui"
)

type command struct {
	name string
	arg  string
}

// parseLine splits "/name arg" commands from plain chat text.
func parseLine(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// resolvePeer accepts a full id or a unique prefix as shown by /who.
func resolvePeer(roster []domain.Participant, self domain.UserID, arg string) (domain.UserID, error) {
	if arg == "" {
		return "", fmt.Errorf("usage: /reconnect <id>")
	}
	var match []domain.UserID
	for _, p := range roster {
		if p.ID == self {
			continue
		}
		if p.ID == domain.UserID(arg) {
			return p.ID, nil
		}
		if strings.HasPrefix(string(p.ID), arg) {
			match = append(match, p.ID)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("no participant %q", arg)
	case 1:
		return match[0], nil
	default:
		return "", fmt.Errorf("%q matches %d participants", arg, len(match))
	}
}

// runInput drives the session from terminal lines until the user leaves,
// input ends or ctx is canceled. It reports how the session should exit.
func runInput(ctx context.Context, sess *session.Session, console *ui.Console, in io.Reader) session.ExitKind {
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

	for {
		select {
		case <-ctx.Done():
			return session.ExitNormal
		case <-sess.Done():
			return session.ExitNormal
		case line, ok := <-lines:
			if !ok {
				return session.ExitNormal
			}
			if exit, done := handleLine(ctx, sess, console, line); done {
				return exit
			}
		}
	}
}

func handleLine(ctx context.Context, sess *session.Session, console *ui.Console, line string) (session.ExitKind, bool) {
	cmd, ok := parseLine(line)
	if !ok {
		// Failed sends surface as a notice; the line is kept for retry.
		_ = sess.SendMessage(ctx, line)
		return 0, false
	}

	switch cmd.name {
	case "leave", "quit", "exit":
		return session.ExitNormal, true
	case "reload":
		return session.ExitReload, true
	case "mute":
		muted, err := sess.ToggleMute(ctx)
		if err != nil {
			return 0, false
		}
		if muted {
			console.Info("Microphone muted")
		} else {
			console.Info("Microphone live")
		}
	case "video":
		on, err := sess.ToggleVideo(ctx)
		if err != nil {
			return 0, false
		}
		if on {
			console.Info("Camera on")
		} else {
			console.Info("Camera off")
		}
	case "media":
		on, err := sess.ToggleMedia(ctx)
		if err != nil {
			console.Error(err)
			return 0, false
		}
		if on {
			console.Info("Reconnecting media")
		}
	case "who":
		console.Println(ui.RosterView(sess.Roster(), sess.UserID(), sess.Links()))
	case "name":
		if err := sess.SetDisplayName(ctx, cmd.arg); err != nil {
			console.Error(err)
			return 0, false
		}
		console.Success("Display name changed to " + strings.TrimSpace(cmd.arg))
	case "resync":
		if err := sess.Resync(ctx); err != nil {
			console.Error(err)
			return 0, false
		}
		console.Success("Roster resynced")
	case "reconnect":
		peer, err := resolvePeer(sess.Roster(), sess.UserID(), cmd.arg)
		if err != nil {
			console.Error(err)
			return 0, false
		}
		if err := sess.Reconnect(ctx, peer); err != nil {
			console.Error(err)
			return 0, false
		}
		console.Info("Reconnecting to " + string(peer))
	default:
		console.Error(fmt.Errorf("unknown command /%s", cmd.name))
	}
	return 0, false
}
