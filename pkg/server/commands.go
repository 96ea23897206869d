package server

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/silver-mush/gopennmush/pkg/events"
	"github.com/silver-mush/gopennmush/pkg/gamedb"
	"github.com/silver-mush/gopennmush/pkg/locate"
	"github.com/silver-mush/gopennmush/pkg/perms"
)

// handleGameCommand processes one post-login line. Returns true when the
// descriptor should be dropped.
func (s *Server) handleGameCommand(d *Descriptor, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	ctx := context.Background()
	player, ok := s.Game.DB.GetObjectNode(ctx, gamedb.DBRef{Num: d.Player.Num})
	if !ok {
		d.Send("Your character no longer exists.")
		return true
	}

	// Single-character speech aliases.
	switch input[0] {
	case '"':
		s.Game.cmdSay(ctx, d, player, input[1:])
		return false
	case ':':
		s.Game.cmdPose(ctx, d, player, input[1:])
		return false
	}

	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "quit":
		d.Send("Goodbye.")
		return true
	case "who":
		s.Game.ShowWho(d, player)
	case "look", "l":
		s.Game.cmdLook(ctx, d, player, args)
	case "examine", "ex":
		s.Game.cmdExamine(ctx, d, player, args)
	case "inventory", "inv", "i":
		s.Game.cmdInventory(ctx, d, player)
	case "get", "take":
		s.Game.cmdGet(ctx, d, player, args)
	case "drop":
		s.Game.cmdDrop(ctx, d, player, args)
	case "go", "goto", "move":
		s.Game.cmdGo(ctx, d, player, args)
	case "say":
		s.Game.cmdSay(ctx, d, player, args)
	case "pose":
		s.Game.cmdPose(ctx, d, player, args)
	case "think":
		d.Send(args)
	case "page", "p":
		s.Game.cmdPage(ctx, d, player, args)
	case "home":
		s.Game.cmdHome(ctx, d, player)
	case "@create":
		s.Game.cmdCreate(ctx, d, player, args)
	case "@dig":
		s.Game.cmdDig(ctx, d, player, args)
	case "@open":
		s.Game.cmdOpen(ctx, d, player, args)
	case "@lock":
		s.Game.cmdLock(ctx, d, player, args)
	case "@unlock":
		s.Game.cmdUnlock(ctx, d, player, args)
	case "@wcheck":
		s.Game.cmdWcheck(ctx, d, player, args)
	case "@locate":
		s.Game.cmdLocate(ctx, d, player, args)
	case "@password":
		s.Game.cmdPassword(d, player, args)
	case "@stats":
		s.Game.cmdStats(d)
	default:
		// Bare exit names move the player, so "north" works without "go".
		if s.Game.tryExit(ctx, d, player, input) {
			return false
		}
		d.Send(`Huh?  (Type "help" for help.)`)
	}
	return false
}

// resolve runs a lookup as the player for the player and reports failures to
// the descriptor.
func (g *Game) resolve(ctx context.Context, player *gamedb.Object, name string, flags locate.Flags) locate.Result {
	return g.Resolver.LocateAndNotifyIfInvalid(ctx, g.Bus, player, player, name, flags)
}

func (g *Game) cmdLook(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		g.ShowRoom(ctx, d, player)
		return
	}
	res := g.resolve(ctx, player, args, locate.All)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	d.Send(obj.Name)
	if desc, found := obj.Attr("DESCRIBE"); found && desc.Value != "" {
		d.Send(desc.Value)
	}
	if obj.IsContainer() && g.Perms.PassesLock(ctx, player, obj, gamedb.LockExamine) {
		contents := g.DB.GetContents(ctx, obj.Ref)
		shown := false
		for _, c := range contents {
			if c.Ref.SameNum(player.Ref) || c.IsExit() || !g.Perms.CanSee(player, c) {
				continue
			}
			if !shown {
				d.Send("Contents:")
				shown = true
			}
			d.Send(c.Name)
		}
	}
}

func (g *Game) cmdExamine(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		args = "here"
	}
	res := g.resolve(ctx, player, args, locate.All|locate.AbsoluteMatch)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	if !g.Perms.CanExamine(ctx, player, obj) {
		d.Send(locate.ErrorPerm)
		return
	}

	d.Send(fmt.Sprintf("%s [#%d%s]", obj.Name, obj.Ref.Num, typeLetter(obj.Type)))
	d.Send("Owner: " + g.nameOf(ctx, obj.Owner))
	if !obj.Zone.IsNothing() {
		d.Send("Zone: " + g.nameOf(ctx, obj.Zone))
	}
	if flags := obj.Flags.Names(); len(flags) > 0 {
		sort.Strings(flags)
		d.Send("Flags: " + strings.Join(flags, " "))
	}
	if powers := obj.Powers.Names(); len(powers) > 0 {
		sort.Strings(powers)
		d.Send("Powers: " + strings.Join(powers, " "))
	}

	var lockNames []string
	for t := range obj.Locks {
		lockNames = append(lockNames, string(t))
	}
	sort.Strings(lockNames)
	for _, t := range lockNames {
		d.Send(fmt.Sprintf("%s lock: %s", t, obj.Locks[gamedb.LockType(t)].LockString))
	}

	var attrNames []string
	for _, a := range obj.Attrs {
		attrNames = append(attrNames, a.Name)
	}
	sort.Strings(attrNames)
	for _, n := range attrNames {
		a, _ := obj.Attr(n)
		if g.Perms.CanViewAttribute(ctx, player, obj, a) {
			d.Send(fmt.Sprintf("%s: %s", a.Name, a.Value))
		}
	}
	d.Send("Location: " + g.nameOf(ctx, obj.Location))
}

func (g *Game) cmdInventory(ctx context.Context, d *Descriptor, player *gamedb.Object) {
	contents := g.DB.GetContents(ctx, player.Ref)
	if len(contents) == 0 {
		d.Send("You aren't carrying anything.")
		return
	}
	d.Send("You are carrying:")
	for _, c := range contents {
		d.Send(c.Name)
	}
}

func (g *Game) cmdGet(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		d.Send("Get what?")
		return
	}
	flags := locate.MatchObjectsInLookerLocation | locate.ThingsPreference |
		locate.EnglishStyleMatching | locate.AbsoluteMatch
	res := g.resolve(ctx, player, args, flags)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	if obj.IsPlayer() || obj.IsRoom() {
		d.Send("You can't pick that up.")
		return
	}
	if !g.Perms.PassesLock(ctx, player, obj, gamedb.LockTake) ||
		!g.Perms.CouldDoIt(ctx, player, obj) {
		d.Send("You can't pick that up.")
		return
	}
	g.MoveObject(obj.Ref, player.Ref)
	d.Send("Taken.")
	g.Bus.EmitToRoomExcept(ctx, g.DB, player.Location, player.Ref, events.Event{
		Type: events.EvRoom, Source: player.Ref, Room: player.Location,
		Text: player.Name + " takes " + obj.Name + ".",
	})
}

func (g *Game) cmdDrop(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		d.Send("Drop what?")
		return
	}
	flags := locate.OnlyMatchObjectsInLookerInventory | locate.MatchObjectsInLookerInventory |
		locate.EnglishStyleMatching | locate.AbsoluteMatch
	res := g.resolve(ctx, player, args, flags)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	if !obj.Location.SameNum(player.Ref) {
		d.Send("You aren't carrying that.")
		return
	}
	if !g.Perms.PassesLock(ctx, player, obj, gamedb.LockDrop) {
		d.Send("You can't drop that.")
		return
	}
	g.MoveObject(obj.Ref, player.Location)
	d.Send("Dropped.")
	g.Bus.EmitToRoomExcept(ctx, g.DB, player.Location, player.Ref, events.Event{
		Type: events.EvRoom, Source: player.Ref, Room: player.Location,
		Text: player.Name + " drops " + obj.Name + ".",
	})
}

func (g *Game) cmdGo(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		d.Send("Go where?")
		return
	}
	if !g.tryExit(ctx, d, player, args) {
		d.Send("You can't go that way.")
	}
}

// tryExit matches args against the exits reachable from the player and moves
// through on a lock pass. Reports whether an exit matched at all.
func (g *Game) tryExit(ctx context.Context, d *Descriptor, player *gamedb.Object, name string) bool {
	flags := locate.ExitsPreference | locate.OnlyMatchTypePreference |
		locate.PreferLockPass | locate.EnglishStyleMatching
	res := g.Resolver.Locate(ctx, player, player, name, flags)
	if !res.IsMatch() || !res.Object.IsExit() {
		return false
	}
	exit := res.Object
	if !g.Perms.CouldDoIt(ctx, player, exit) {
		d.Send("You can't go that way.")
		return true
	}
	dest := exit.Destination
	if dest.IsNothing() {
		d.Send("That exit leads nowhere.")
		return true
	}
	old := player.Location
	g.MoveObject(player.Ref, dest)
	g.Conns.SendToRoomExcept(ctx, g.DB, old, player.Ref, player.Name+" has left.")
	g.Conns.SendToRoomExcept(ctx, g.DB, dest, player.Ref, player.Name+" has arrived.")
	g.ShowRoom(ctx, d, player)
	return true
}

func (g *Game) cmdHome(ctx context.Context, d *Descriptor, player *gamedb.Object) {
	if player.Home.IsNothing() {
		d.Send("You have no home.")
		return
	}
	old := player.Location
	g.MoveObject(player.Ref, player.Home)
	g.Conns.SendToRoomExcept(ctx, g.DB, old, player.Ref, player.Name+" goes home.")
	d.Send("There's no place like home...")
	g.ShowRoom(ctx, d, player)
}

func (g *Game) cmdSay(ctx context.Context, d *Descriptor, player *gamedb.Object, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.Send(`You say, "` + text + `"`)
	g.speakToRoom(ctx, player, events.EvSay, player.Name+` says, "`+text+`"`)
}

func (g *Game) cmdPose(ctx context.Context, d *Descriptor, player *gamedb.Object, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	msg := player.Name + " " + text
	d.Send(msg)
	g.speakToRoom(ctx, player, events.EvPose, msg)
}

// speakToRoom delivers speech to every listener in the room that passes the
// speaker's interaction checks.
func (g *Game) speakToRoom(ctx context.Context, speaker *gamedb.Object, typ events.EventType, msg string) {
	for _, c := range g.DB.GetContents(ctx, speaker.Location) {
		if !c.IsPlayer() || c.Ref.SameNum(speaker.Ref) {
			continue
		}
		if !g.Perms.CanInteract(ctx, speaker, c, perms.InteractHear) {
			continue
		}
		g.Bus.Emit(events.Event{
			Type: typ, Player: c.Ref, Source: speaker.Ref, Room: speaker.Location, Text: msg,
		})
	}
}

func (g *Game) cmdPage(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	target, msg, found := strings.Cut(args, "=")
	if !found || strings.TrimSpace(msg) == "" {
		d.Send("Usage: page <player>=<message>")
		return
	}
	target = strings.TrimSpace(target)
	msg = strings.TrimSpace(msg)

	res := g.Resolver.LocatePlayerAndNotifyIfInvalid(ctx, g.Bus, player, player, target)
	if !res.IsMatch() {
		return
	}
	who := res.Object
	if !g.Perms.PassesLock(ctx, player, who, gamedb.LockPage) {
		d.Send(who.Name + " is not accepting pages.")
		return
	}
	if !g.Conns.IsConnected(who.Ref) {
		d.Send(who.Name + " is not connected.")
		return
	}
	g.Bus.Emit(events.Event{
		Type: events.EvPage, Player: who.Ref, Source: player.Ref,
		Text: player.Name + " pages: " + msg,
	})
	d.Send(`You paged ` + who.Name + ` with "` + msg + `".`)
}

func (g *Game) cmdCreate(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		d.Send("Create what?")
		return
	}
	obj, err := g.CreateObject(gamedb.TypeThing, args, player.Ref, player.Ref)
	if err != nil {
		d.Send("Creation failed.")
		return
	}
	obj.Home = player.Ref
	g.Persist(obj.Ref)
	d.Send(fmt.Sprintf("Created: %s (#%d).", obj.Name, obj.Ref.Num))
}

func (g *Game) cmdDig(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if args == "" {
		d.Send("Dig what?")
		return
	}
	room, err := g.CreateObject(gamedb.TypeRoom, args, player.Ref, gamedb.Nothing)
	if err != nil {
		d.Send("Creation failed.")
		return
	}
	room.Home = gamedb.Nothing
	g.Persist(room.Ref)
	d.Send(fmt.Sprintf("%s created with room number #%d.", room.Name, room.Ref.Num))
}

// cmdOpen makes an exit in the player's location: @open <name>=<#dest>
func (g *Game) cmdOpen(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	name, destStr, _ := strings.Cut(args, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		d.Send("Open which exit?")
		return
	}
	loc, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: player.Location.Num})
	if !ok || !loc.IsRoom() {
		d.Send("You can only open exits in a room.")
		return
	}
	if !g.Perms.Controls(ctx, player, loc) {
		d.Send(locate.ErrorPerm)
		return
	}
	// "north;n;nor" keeps the first segment as the name, the rest as aliases.
	parts := strings.Split(name, ";")
	exit, err := g.CreateObject(gamedb.TypeExit, strings.TrimSpace(parts[0]), player.Ref, loc.Ref)
	if err != nil {
		d.Send("Creation failed.")
		return
	}
	for _, alias := range parts[1:] {
		if alias = strings.TrimSpace(alias); alias != "" {
			exit.Aliases = append(exit.Aliases, alias)
		}
	}
	if destStr = strings.TrimSpace(destStr); destStr != "" {
		dest, ok := gamedb.ParseObjRef(destStr)
		if !ok {
			d.Send("I don't see where you want that to lead.")
		} else if target, found := g.DB.GetObjectNode(ctx, dest); !found {
			d.Send("That destination does not exist.")
		} else {
			exit.Destination = target.Ref
		}
	}
	g.Persist(exit.Ref)
	d.Send(fmt.Sprintf("Opened exit %s (#%d).", exit.Name, exit.Ref.Num))
}

// cmdLock sets a lock: @lock <object>[/<type>]=<lock string>
func (g *Game) cmdLock(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	spec, lockStr, found := strings.Cut(args, "=")
	if !found {
		d.Send("Usage: @lock <object>[/<type>]=<key>")
		return
	}
	name, lockType := splitLockSpec(spec)
	res := g.resolve(ctx, player, name, locate.All|locate.AbsoluteMatch)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	if !g.Perms.Controls(ctx, player, obj) {
		d.Send(locate.ErrorPerm)
		return
	}
	if err := g.Locks.Set(ctx, lockType, strings.TrimSpace(lockStr), obj); err != nil {
		d.Send("I don't understand that key: " + err.Error())
		return
	}
	d.Send(fmt.Sprintf("%s lock set on %s.", lockType, obj.Name))
}

// cmdUnlock clears a lock: @unlock <object>[/<type>]
func (g *Game) cmdUnlock(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	name, lockType := splitLockSpec(args)
	res := g.resolve(ctx, player, name, locate.All|locate.AbsoluteMatch)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	if !g.Perms.Controls(ctx, player, obj) {
		d.Send(locate.ErrorPerm)
		return
	}
	g.DB.ClearLock(obj.Ref, lockType)
	if err := g.Store.ClearLock(obj.Ref, lockType); err != nil {
		log.Printf("BOLT: clear lock on #%d: %v", obj.Ref.Num, err)
	}
	g.Locks.Invalidate(obj.Ref, lockType)
	d.Send(fmt.Sprintf("%s lock cleared on %s.", lockType, obj.Name))
}

func splitLockSpec(spec string) (name string, lockType gamedb.LockType) {
	name, typeStr, found := strings.Cut(strings.TrimSpace(spec), "/")
	if !found || strings.TrimSpace(typeStr) == "" {
		return strings.TrimSpace(name), gamedb.LockBasic
	}
	typeStr = strings.TrimSpace(typeStr)
	// Lock type names are stored in title case.
	return strings.TrimSpace(name), gamedb.LockType(strings.ToUpper(typeStr[:1]) + strings.ToLower(typeStr[1:]))
}

// cmdLocate is a diagnostic: @locate [players|all] <name> shows how a name
// resolves for the player.
// cmdWcheck audits locks in place: every stored lock string is recompiled
// and test-evaluated against the checker, so dangling references and
// runaway indirection surface without rewriting anything.
func (g *Game) cmdWcheck(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	if strings.TrimSpace(args) == "" {
		d.Send("Usage: @wcheck <object>[/<type>]")
		return
	}
	hasType := strings.Contains(args, "/")
	name, lockType := splitLockSpec(args)
	res := g.resolve(ctx, player, name, locate.All|locate.AbsoluteMatch)
	if !res.IsMatch() {
		return
	}
	obj := res.Object
	if !g.Perms.Controls(ctx, player, obj) {
		d.Send(locate.ErrorPerm)
		return
	}

	var types []gamedb.LockType
	if hasType {
		types = []gamedb.LockType{lockType}
	} else {
		for t := range obj.Locks {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	}
	if len(types) == 0 {
		d.Send(fmt.Sprintf("%s has no locks set.", obj.Name))
		return
	}
	bad := 0
	for _, t := range types {
		entry := obj.Lock(t)
		if err := g.Locks.Validate(ctx, entry.LockString, obj); err != nil {
			bad++
			d.Send(fmt.Sprintf("%s lock: %v", t, err))
			continue
		}
		if _, err := g.Locks.EvaluateE(ctx, t, player, obj); err != nil {
			bad++
			d.Send(fmt.Sprintf("%s lock: %v", t, err))
			continue
		}
		d.Send(fmt.Sprintf("%s lock: OK (%s)", t, entry.LockString))
	}
	if bad == 0 {
		d.Send(fmt.Sprintf("All locks on %s check out.", obj.Name))
	}
}

func (g *Game) cmdLocate(ctx context.Context, d *Descriptor, player *gamedb.Object, args string) {
	q := locate.Default()
	if mode, rest, found := strings.Cut(args, " "); found {
		switch strings.ToLower(mode) {
		case "players":
			q = locate.PlayersOnly()
			args = rest
		case "all":
			q = locate.AllTypes()
			args = rest
		}
	}
	if args == "" {
		d.Send("Usage: @locate [players|all] <name>")
		return
	}
	res := g.Resolver.LocateQuery(ctx, player, player, args, q)
	switch res.Kind {
	case locate.KindMatch:
		// Unfindable players stay off the search radar.
		if res.Object.IsPlayer() && !g.Perms.CanFind(player, res.Object) {
			d.Send(fmt.Sprintf("%s: %s", locate.KindNotFound, locate.MsgNotVisible))
			return
		}
		d.Send(fmt.Sprintf("Matched: %s (%s)", res.Object.Name, res.Object.Ref.ObjID()))
	default:
		d.Send(fmt.Sprintf("%s: %s", res.Kind, res.Message))
	}
}

func (g *Game) cmdPassword(d *Descriptor, player *gamedb.Object, args string) {
	oldPw, newPw, found := strings.Cut(args, "=")
	if !found || newPw == "" {
		d.Send("Usage: @password <old>=<new>")
		return
	}
	if !CheckPassword(player, oldPw) {
		d.Send("The old password is incorrect.")
		return
	}
	if err := SetPassword(player, newPw, g.Conf.BcryptCost); err != nil {
		d.Send("Password change failed.")
		return
	}
	g.Persist(player.Ref)
	d.Send("Password changed.")
}

func (g *Game) cmdStats(d *Descriptor) {
	counts := g.ObjectCounts()
	d.Send(fmt.Sprintf("%d objects: %d rooms, %d exits, %d things, %d players.",
		g.DB.Size(), counts[gamedb.TypeRoom], counts[gamedb.TypeExit],
		counts[gamedb.TypeThing], counts[gamedb.TypePlayer]))

	hits, misses, compiles, evalErrors := g.Locks.Stats()
	d.Send(fmt.Sprintf("Lock cache: %d hits, %d misses, %d compiles, %d eval errors.",
		hits, misses, compiles, evalErrors))

	ls := g.Resolver.Stats()
	d.Send(fmt.Sprintf("Lookups: %d matched, %d not found, %d ambiguous, %d denied.",
		ls.Matches, ls.NotFound, ls.Ambiguous, ls.PermissionDenied))
}

func (g *Game) nameOf(ctx context.Context, ref gamedb.DBRef) string {
	if ref.IsNothing() {
		return "Nothing"
	}
	if obj, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: ref.Num}); ok {
		return fmt.Sprintf("%s (#%d)", obj.Name, obj.Ref.Num)
	}
	return ref.String()
}

func typeLetter(t gamedb.ObjectType) string {
	switch t {
	case gamedb.TypePlayer:
		return "P"
	case gamedb.TypeRoom:
		return "R"
	case gamedb.TypeExit:
		return "E"
	default:
		return ""
	}
}
