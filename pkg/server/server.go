package server

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// Server accepts telnet-style TCP connections and drives the login and
// command loops for each descriptor.
type Server struct {
	Game *Game

	listener net.Listener
	mu       sync.Mutex
	running  bool
	wg       sync.WaitGroup
	quit     chan struct{}
}

func NewServer(game *Game) *Server {
	return &Server{
		Game: game,
		quit: make(chan struct{}),
	}
}

// Start opens the listen socket and blocks in the accept loop until Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.Game.Conf.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	log.Printf("NET: %s listening on %s", s.Game.Conf.MudName, addr)
	s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			log.Printf("NET: accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Stop closes the listener and every open descriptor, then waits for the
// connection goroutines to drain.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, d := range s.Game.Conns.AllDescriptors() {
		d.Send("*** Server shutting down ***")
		d.Close()
	}
	s.wg.Wait()
	log.Printf("NET: server stopped")
}

func (s *Server) handleConnection(conn net.Conn) {
	d := NewDescriptor(s.Game.Conns.NextID(), conn)
	s.Game.Conns.Add(d)
	defer s.dropDescriptor(d)

	d.Send(s.Game.Conf.WelcomeText)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 16384)
	for scanner.Scan() {
		if d.IsClosed() {
			return
		}
		line := stripTelnet(strings.TrimRight(scanner.Text(), "\r\n"))
		if s.idleBooted(d) {
			return
		}
		d.LastCmd = time.Now()
		d.CmdCount++
		d.BytesRecv += len(line)

		switch d.State {
		case ConnLogin:
			if s.handleLoginCommand(d, line) {
				return
			}
		case ConnConnected:
			if s.handleGameCommand(d, line) {
				return
			}
		}
	}
}

// HandleDescriptor runs the same login and command loop for descriptors
// whose transport is not a plain net.Conn, such as websocket bridges.
func (s *Server) HandleDescriptor(d *Descriptor) {
	s.Game.Conns.Add(d)
	defer s.dropDescriptor(d)

	d.Send(s.Game.Conf.WelcomeText)
	for {
		line, err := d.ReceiveLine()
		if err != nil {
			return
		}
		line = stripTelnet(strings.TrimRight(line, "\r\n"))
		d.LastCmd = time.Now()
		d.CmdCount++
		d.BytesRecv += len(line)

		switch d.State {
		case ConnLogin:
			if s.handleLoginCommand(d, line) {
				return
			}
		case ConnConnected:
			if s.handleGameCommand(d, line) {
				return
			}
		}
	}
}

func (s *Server) dropDescriptor(d *Descriptor) {
	if d.State == ConnConnected {
		ctx := context.Background()
		if player, ok := s.Game.DB.GetObjectNode(ctx, gamedb.DBRef{Num: d.Player.Num}); ok {
			// Announce only when the last descriptor goes away.
			if len(s.Game.Conns.GetByPlayer(d.Player)) <= 1 {
				s.Game.AnnounceDisconnect(ctx, player)
			}
		}
	}
	s.Game.Conns.Remove(d)
	d.Close()
}

func (s *Server) idleBooted(d *Descriptor) bool {
	limit := s.Game.Conf.IdleTimeout
	if limit <= 0 || d.State != ConnConnected {
		return false
	}
	if time.Since(d.LastCmd) < time.Duration(limit)*time.Second {
		return false
	}
	ctx := context.Background()
	if player, ok := s.Game.DB.GetObjectNode(ctx, gamedb.DBRef{Num: d.Player.Num}); ok && s.Game.Perms.CanIdle(player) {
		return false
	}
	d.Send("*** Idle timeout ***")
	d.Close()
	return true
}

// handleLoginCommand processes one pre-login line. Returns true when the
// descriptor should be dropped.
func (s *Server) handleLoginCommand(d *Descriptor, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	command, user, password := ParseConnect(input)
	switch {
	case command == "quit":
		d.Send("Goodbye.")
		return true
	case command == "who":
		s.Game.ShowWho(d, nil)
		return false
	case strings.HasPrefix("connect", command) && len(command) >= 2:
		s.handleConnect(d, user, password)
		return false
	case strings.HasPrefix("create", command) && len(command) >= 2:
		s.handleCreate(d, user, password)
		return false
	default:
		d.Send(`Use "connect <name> <password>" to connect, or "create <name> <password>" to make a character.`)
		return false
	}
}

func (s *Server) handleConnect(d *Descriptor, user, password string) {
	ctx := context.Background()
	player := LookupPlayer(ctx, s.Game.DB, user)
	if player == nil || !CheckPassword(player, password) {
		d.Retries--
		d.Send("Either that player does not exist, or has a different password.")
		log.Printf("NET: failed login for %q from %s", user, d.Addr)
		if d.Retries <= 0 {
			d.Close()
		}
		return
	}
	if !s.Game.Perms.CanLogin(player) && s.Game.Conns.IsConnected(player.Ref) {
		d.Send("That player is already connected.")
		return
	}

	d.State = ConnConnected
	d.Player = player.Ref
	s.Game.Conns.Login(d, player.Ref)

	d.Send(fmt.Sprintf("Welcome back, %s.", player.Name))
	s.Game.AnnounceConnect(ctx, player)
	s.Game.ShowRoom(ctx, d, player)
}

func (s *Server) handleCreate(d *Descriptor, user, password string) {
	ctx := context.Background()
	if user == "" || password == "" {
		d.Send(`Usage: create <name> <password>`)
		return
	}
	if badPlayerName(user) {
		d.Send("That is not a reasonable name for a player.")
		return
	}
	if len(s.Game.DB.GetPlayersByName(ctx, user)) > 0 {
		d.Send("That name is already taken.")
		return
	}

	start := gamedb.DBRef{Num: s.Game.Conf.PlayerStartingRoom}
	player, err := s.Game.CreateObject(gamedb.TypePlayer, user, gamedb.Nothing, start)
	if err != nil {
		log.Printf("BOLT: create player %q: %v", user, err)
		d.Send("Something went wrong creating that player. Try again later.")
		return
	}
	if err := SetPassword(player, password, s.Game.Conf.BcryptCost); err != nil {
		d.Send("Something went wrong creating that player. Try again later.")
		return
	}
	s.Game.Persist(player.Ref)

	d.State = ConnConnected
	d.Player = player.Ref
	s.Game.Conns.Login(d, player.Ref)

	log.Printf("NET: created player %s (#%d) from %s", player.Name, player.Ref.Num, d.Addr)
	d.Send(fmt.Sprintf("Welcome to %s, %s.", s.Game.Conf.MudName, player.Name))
	s.Game.AnnounceConnect(ctx, player)
	s.Game.ShowRoom(ctx, d, player)
}

func badPlayerName(name string) bool {
	if len(name) < 2 || len(name) > 30 {
		return true
	}
	if strings.ContainsAny(name, "#*\" \t;,[]%=") {
		return true
	}
	switch strings.ToLower(name) {
	case "me", "here", "home", "god":
		return true
	}
	return false
}

// stripTelnet removes IAC option negotiation bytes from a raw line.
func stripTelnet(s string) string {
	const iac = 0xFF
	// IndexByte, not ContainsRune: IAC is a raw byte, and the rune U+00FF
	// encodes as two bytes that never appear in a telnet stream.
	if strings.IndexByte(s, iac) < 0 {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == iac {
			i += 2
			continue
		}
		if s[i] >= 0x20 || s[i] == '\t' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
