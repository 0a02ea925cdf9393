package fake

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// GenerateState builds a randomized current-layout server with the given
// number of players and a realistic set of rules.
func GenerateState(players int, legacy bool) State {
	maps := []string{"de_dust2", "cs_office", "de_inferno", "de_nuke", "cs_italy", "de_train", "de_aztec"}
	names := []string{"Gordon", "Alyx", "Barney", "Eli", "Kleiner", "Breen", "Odessa", "Vortigaunt"}

	if players > 255 {
		players = 255
	}
	players = max(players, 0)
	maxPlayers := byte(max(players, 32))

	mapName := maps[rand.Intn(len(maps))]

	list := make([]a2s.Player, 0, players)
	for i := 0; i < players; i++ {
		list = append(list, a2s.Player{
			Index:    byte(i),
			Name:     fmt.Sprintf("%s #%d", names[rand.Intn(len(names))], i),
			Score:    int32(rand.Intn(100) - 10),
			Duration: float32(rand.Intn(7200)) + rand.Float32(),
		})
	}

	rules := map[string]string{
		"mp_friendlyfire": strconv.Itoa(rand.Intn(2)),
		"mp_timelimit":    strconv.Itoa(20 + rand.Intn(40)),
		"mp_roundtime":    "5",
		"sv_gravity":      "800",
		"sv_maxspeed":     "320",
		"sv_password":     "0",
		"mp_c4timer":      "35",
		"sv_contact":      "admin@example.com",
	}

	var info a2s.ServerInfo
	if legacy {
		info = &a2s.LegacyInfo{
			Address:     "127.0.0.1:27015",
			Name:        fmt.Sprintf("Fake GoldSource Server #%d", rand.Intn(1000)),
			Map:         mapName,
			Folder:      "cstrike",
			Game:        "Counter-Strike",
			Players:     byte(players),
			MaxPlayers:  maxPlayers,
			Protocol:    47,
			ServerType:  'd',
			Environment: 'l',
			VAC:         true,
			Mod: &a2s.Mod{
				Link:         "http://www.counter-strike.net",
				DownloadLink: "",
				Version:      1,
				Size:         184000000,
				Type:         1,
			},
		}
	} else {
		port := uint16(27015)
		keywords := "secure,fake,dev"
		info = &a2s.CurrentInfo{
			Protocol:    17,
			Name:        fmt.Sprintf("Fake Source Server #%d", rand.Intn(1000)),
			Map:         mapName,
			Folder:      "cstrike",
			Game:        "Counter-Strike: Source",
			AppID:       240,
			Players:     byte(players),
			MaxPlayers:  maxPlayers,
			ServerType:  'd',
			Environment: 'l',
			VAC:         true,
			Version:     "1.0.0.71",
			GamePort:    &port,
			Keywords:    &keywords,
		}
	}

	return State{
		Info:    info,
		Players: list,
		Rules:   rules,
	}
}
