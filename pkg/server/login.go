package server

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/silver-mush/gopennmush/pkg/gamedb"
)

// ParseConnect splits a login line into command, user and password. Player
// names containing spaces may be quoted: connect "Wandering Minstrel" pw
func ParseConnect(input string) (command, user, password string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", "", ""
	}
	command = strings.ToLower(fields[0])
	rest := fields[1:]
	if len(rest) == 0 {
		return command, "", ""
	}

	if strings.HasPrefix(rest[0], `"`) {
		for i := range rest {
			if strings.HasSuffix(rest[i], `"`) {
				user = strings.Trim(strings.Join(rest[:i+1], " "), `"`)
				rest = rest[i+1:]
				break
			}
		}
		if user == "" {
			// Unterminated quote; treat the rest as the name.
			user = strings.TrimPrefix(strings.Join(rest, " "), `"`)
			rest = nil
		}
	} else {
		user = rest[0]
		rest = rest[1:]
	}

	if len(rest) > 0 {
		password = rest[0]
	}
	return command, user, password
}

// LookupPlayer finds the unique player with the given name or alias.
func LookupPlayer(ctx context.Context, db gamedb.Snapshot, name string) *gamedb.Object {
	players := db.GetPlayersByName(ctx, name)
	if len(players) != 1 {
		return nil
	}
	return players[0]
}

// CheckPassword verifies a login password against the stored bcrypt hash.
// Players with no password set can never authenticate.
func CheckPassword(player *gamedb.Object, password string) bool {
	if len(player.Password) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(player.Password, []byte(password)) == nil
}

// SetPassword hashes and stores a player's password.
func SetPassword(player *gamedb.Object, password string, cost int) error {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	player.Password = hash
	return nil
}
