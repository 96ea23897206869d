package server

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/silver-mush/gopennmush/pkg/boltstore"
	"github.com/silver-mush/gopennmush/pkg/events"
	"github.com/silver-mush/gopennmush/pkg/gamedb"
	"github.com/silver-mush/gopennmush/pkg/locate"
	"github.com/silver-mush/gopennmush/pkg/locks"
	"github.com/silver-mush/gopennmush/pkg/perms"
)

// Game holds the live world plus the services that answer questions about it.
type Game struct {
	Store    *boltstore.Store
	DB       *gamedb.Database
	Locks    *locks.Service
	Perms    *perms.Service
	Resolver *locate.Resolver
	Bus      *events.Bus
	Conns    *ConnManager
	Conf     *GameConf

	startTime time.Time
}

// NewGame wires the service stack on top of an opened store.
func NewGame(store *boltstore.Store, conf *GameConf) *Game {
	db := store.DB()
	lockSvc := locks.NewService(db, store)
	permSvc := perms.NewService(db, lockSvc, perms.Config{
		God:                gamedb.DBRef{Num: conf.GodDBRef},
		ZoneNestLimit:      conf.ZoneNestLimit,
		ZoneControlZMPOnly: conf.ZoneControlZMPOnly,
	})
	masterRoom := gamedb.DBRef{Num: conf.MasterRoom}
	bus := events.NewBus()

	return &Game{
		Store:     store,
		DB:        db,
		Locks:     lockSvc,
		Perms:     permSvc,
		Resolver:  locate.NewResolver(db, permSvc, masterRoom),
		Bus:       bus,
		Conns:     NewConnManager(bus),
		Conf:      conf,
		startTime: time.Now(),
	}
}

// Uptime reports seconds since the game was constructed.
func (g *Game) Uptime() float64 {
	return time.Since(g.startTime).Seconds()
}

// ApplyConf takes a reloaded configuration. Only the fields that are safe to
// change at runtime are applied; port and database path need a restart.
func (g *Game) ApplyConf(conf *GameConf) {
	g.Conf.MudName = conf.MudName
	g.Conf.WelcomeText = conf.WelcomeText
	g.Conf.IdleTimeout = conf.IdleTimeout
	g.Conf.BcryptCost = conf.BcryptCost
	log.Printf("CONF: applied runtime settings (mud_name=%q idle_timeout=%d)", conf.MudName, conf.IdleTimeout)
}

// Seed builds the minimal world a fresh database needs: Room Zero, God and
// the master room. Called only when the store has no objects.
func (g *Game) Seed() error {
	now := time.Now()
	stamp := now.Unix()

	roomZero := &gamedb.Object{
		Ref:         gamedb.DBRef{Num: 0, Created: stamp},
		Type:        gamedb.TypeRoom,
		Name:        "Room Zero",
		Location:    gamedb.Nothing,
		Home:        gamedb.Nothing,
		Destination: gamedb.Nothing,
		Owner:       gamedb.DBRef{Num: g.Conf.GodDBRef, Created: stamp},
		Zone:        gamedb.Nothing,
		Flags:       gamedb.NewNameSet(),
		Modified:    now,
	}
	god := &gamedb.Object{
		Ref:         gamedb.DBRef{Num: g.Conf.GodDBRef, Created: stamp},
		Type:        gamedb.TypePlayer,
		Name:        "God",
		Location:    roomZero.Ref,
		Home:        roomZero.Ref,
		Destination: gamedb.Nothing,
		Owner:       gamedb.DBRef{Num: g.Conf.GodDBRef, Created: stamp},
		Zone:        gamedb.Nothing,
		Flags:       gamedb.NewNameSet("WIZARD"),
		Modified:    now,
	}
	master := &gamedb.Object{
		Ref:         gamedb.DBRef{Num: g.Conf.MasterRoom, Created: stamp},
		Type:        gamedb.TypeRoom,
		Name:        "Master Room",
		Location:    gamedb.Nothing,
		Home:        gamedb.Nothing,
		Destination: gamedb.Nothing,
		Owner:       god.Ref,
		Zone:        gamedb.Nothing,
		Flags:       gamedb.NewNameSet(),
		Modified:    now,
	}
	if err := SetPassword(god, "wizard", g.Conf.BcryptCost); err != nil {
		return err
	}

	for _, obj := range []*gamedb.Object{roomZero, god, master} {
		g.DB.Add(obj)
		if err := g.Store.PutObject(obj); err != nil {
			return err
		}
	}
	if err := g.Store.UpdatePlayerIndex(god, ""); err != nil {
		return err
	}
	log.Printf("BOLT: seeded new world at %s (god=#%d master=#%d)", g.Store.Path(), god.Ref.Num, master.Ref.Num)
	return nil
}

// SetGodPassword rehashes God's password, for recovery from the command line.
func (g *Game) SetGodPassword(password string) error {
	ctx := context.Background()
	god, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: g.Conf.GodDBRef})
	if !ok {
		return fmt.Errorf("no object #%d in database", g.Conf.GodDBRef)
	}
	if err := SetPassword(god, password, g.Conf.BcryptCost); err != nil {
		return err
	}
	return g.Store.PutObject(god)
}

// CreateObject allocates a fresh object of the given type, owned by owner,
// and persists it.
func (g *Game) CreateObject(t gamedb.ObjectType, name string, owner, location gamedb.DBRef) (*gamedb.Object, error) {
	obj := &gamedb.Object{
		Ref:         g.DB.NextRef(),
		Type:        t,
		Name:        name,
		Location:    location,
		Home:        location,
		Destination: gamedb.Nothing,
		Owner:       owner,
		Zone:        gamedb.Nothing,
		Flags:       gamedb.NewNameSet(),
		Modified:    time.Now(),
	}
	if t == gamedb.TypePlayer {
		obj.Owner = obj.Ref
	}
	g.DB.Add(obj)
	if err := g.Store.PutObject(obj); err != nil {
		return nil, err
	}
	if t == gamedb.TypePlayer {
		if err := g.Store.UpdatePlayerIndex(obj, ""); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Persist writes the current state of the given objects back to the store.
func (g *Game) Persist(refs ...gamedb.DBRef) {
	ctx := context.Background()
	for _, ref := range refs {
		if ref.IsNothing() {
			continue
		}
		obj, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: ref.Num})
		if !ok {
			continue
		}
		if err := g.Store.PutObject(obj); err != nil {
			log.Printf("BOLT: persist #%d: %v", ref.Num, err)
		}
	}
}

// MoveObject relocates an object and persists both it and the containers.
func (g *Game) MoveObject(ref, dest gamedb.DBRef) {
	ctx := context.Background()
	obj, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: ref.Num})
	if !ok {
		return
	}
	old := obj.Location
	g.DB.Move(ref, dest)
	g.Persist(ref, old, dest)
}

// ShowRoom sends the room description, contents and exits to the player.
func (g *Game) ShowRoom(ctx context.Context, d *Descriptor, player *gamedb.Object) {
	loc, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: player.Location.Num})
	if !ok {
		d.Send("You are nowhere.")
		return
	}
	if g.Perms.CanSee(player, loc) {
		d.Send(loc.DisplayName())
	} else {
		d.Send(loc.Name)
	}
	if desc, found := loc.Attr("DESCRIBE"); found && desc.Value != "" {
		d.Send(desc.Value)
	}

	var things, exits []string
	for _, c := range g.DB.GetContents(ctx, loc.Ref) {
		if c.Ref.SameNum(player.Ref) {
			continue
		}
		switch {
		case c.IsExit():
			exits = append(exits, strings.SplitN(c.Name, ";", 2)[0])
		case g.Perms.CanSee(player, c) && g.Perms.CanInteract(ctx, c, player, perms.InteractSee):
			things = append(things, c.Name)
		}
	}
	if len(things) > 0 {
		d.Send("Contents:")
		for _, n := range things {
			d.Send(n)
		}
	}
	if len(exits) > 0 {
		d.Send("Obvious exits:")
		d.Send(strings.Join(exits, "  "))
	}
}

// whoVisible reports whether p appears on viewer's listing. A player hides
// only when DARK and privileged to hide; privileged viewers see everyone.
// viewer is nil on the pre-login screen, which gets the unprivileged view.
func (g *Game) whoVisible(viewer, p *gamedb.Object) bool {
	if viewer != nil && (viewer.Ref == p.Ref || g.Perms.SeeAll(viewer) || g.Perms.IsWizard(viewer)) {
		return true
	}
	return !(p.HasFlag("DARK") && g.Perms.CanHide(p))
}

// ShowWho prints the connected-player table, minus hidden players.
func (g *Game) ShowWho(d *Descriptor, viewer *gamedb.Object) {
	ctx := context.Background()
	d.Send(fmt.Sprintf("%-20s %10s %6s", "Player Name", "On For", "Idle"))
	count := 0
	for _, desc := range g.Conns.AllDescriptors() {
		if desc.State != ConnConnected {
			continue
		}
		p, ok := g.DB.GetObjectNode(ctx, gamedb.DBRef{Num: desc.Player.Num})
		if !ok {
			continue
		}
		if !g.whoVisible(viewer, p) {
			continue
		}
		on := time.Since(desc.ConnTime).Truncate(time.Second)
		idle := time.Since(desc.LastCmd).Truncate(time.Second)
		d.Send(fmt.Sprintf("%-20s %10s %6s", p.Name, on, idle))
		count++
	}
	d.Send(fmt.Sprintf("%d player%s connected.", count, plural(count)))
}

// AnnounceConnect tells the room a player has connected.
func (g *Game) AnnounceConnect(ctx context.Context, player *gamedb.Object) {
	log.Printf("NET: %s (#%d) connected", player.Name, player.Ref.Num)
	g.Conns.SendToRoomExcept(ctx, g.DB, player.Location, player.Ref,
		player.Name+" has connected.")
}

// AnnounceDisconnect tells the room a player has disconnected.
func (g *Game) AnnounceDisconnect(ctx context.Context, player *gamedb.Object) {
	log.Printf("NET: %s (#%d) disconnected", player.Name, player.Ref.Num)
	g.Conns.SendToRoomExcept(ctx, g.DB, player.Location, player.Ref,
		player.Name+" has disconnected.")
}

// DisconnectPlayer closes every descriptor a player holds.
func (g *Game) DisconnectPlayer(player gamedb.DBRef) {
	for _, d := range g.Conns.GetByPlayer(player) {
		d.Send("*** Disconnected ***")
		d.Close()
	}
}

// ObjectCounts tallies the database by type for @stats and metrics.
func (g *Game) ObjectCounts() map[gamedb.ObjectType]int {
	counts := make(map[gamedb.ObjectType]int)
	for _, obj := range g.DB.All() {
		counts[obj.Type]++
	}
	return counts
}

// SortedNames is a display helper for @stats style listings.
func SortedNames(objs []*gamedb.Object) []string {
	names := make([]string, 0, len(objs))
	for _, o := range objs {
		names = append(names, o.Name)
	}
	sort.Strings(names)
	return names
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
