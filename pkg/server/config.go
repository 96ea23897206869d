package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// GameConf holds game-level configuration parameters, loaded from YAML.
type GameConf struct {
	// --- Identity ---
	MudName     string `yaml:"mud_name"`
	Port        int    `yaml:"port"`
	WelcomeText string `yaml:"welcome_text"`

	// --- Key rooms ---
	MasterRoom         int `yaml:"master_room"`
	PlayerStartingRoom int `yaml:"player_starting_room"`

	// --- Security ---
	GodDBRef           int  `yaml:"god_dbref"`             // The God player dbref (default 1)
	ZoneNestLimit      int  `yaml:"zone_nest_limit"`       // Max zone recursion depth (default 20)
	ZoneControlZMPOnly bool `yaml:"zone_control_zmp_only"` // Disable zone-master-object control
	BcryptCost         int  `yaml:"bcrypt_cost"`

	// --- Idle/timeout ---
	IdleTimeout int `yaml:"idle_timeout"` // Seconds; 0 = no idle boot

	// --- Persistence ---
	DBFile string `yaml:"db_file"`

	// --- Web ---
	WebEnabled bool `yaml:"web_enabled"`
	WebPort    int  `yaml:"web_port"`
}

// DefaultGameConf returns a GameConf with PennMUSH-compatible defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		MudName:            "GoPennMUSH",
		Port:               4201,
		WelcomeText:        defaultWelcome,
		MasterRoom:         2,
		PlayerStartingRoom: 0,
		GodDBRef:           1,
		ZoneNestLimit:      20,
		ZoneControlZMPOnly: false,
		BcryptCost:         10,
		IdleTimeout:        3600,
		DBFile:             "game.db",
		WebEnabled:         true,
		WebPort:            8080,
	}
}

const defaultWelcome = `Welcome to GoPennMUSH.
Use "connect <name> <password>" to connect to an existing character,
or "create <name> <password>" to make a new one. "WHO" and "QUIT" also work.
`

// LoadGameConf loads a YAML game config, applying defaults for absent keys.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return gc, nil
}

// WatchGameConf watches the config file and invokes onChange with the newly
// loaded config whenever it is rewritten. The returned watcher must be closed
// by the caller on shutdown. Reload errors are logged and the previous config
// stays in effect.
func WatchGameConf(path string, onChange func(*GameConf)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("gameconf: watcher: %w", err)
	}
	// Watch the directory: editors replace files rather than rewrite in place.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("gameconf: watch %s: %w", path, err)
	}

	go func() {
		base := filepath.Base(path)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				gc, err := LoadGameConf(path)
				if err != nil {
					log.Printf("CONF: reload %s failed: %v", path, err)
					continue
				}
				log.Printf("CONF: reloaded %s", path)
				onChange(gc)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("CONF: watcher error: %v", err)
			}
		}
	}()

	return w, nil
}
