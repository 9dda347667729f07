package board

import "fmt"

type Faction int

const (
	Steel Faction = iota
	Arcane
	Green
	Golden
)

// Factions in seating order. Players are assigned round-robin by join index.
var Factions = [4]Faction{Steel, Arcane, Green, Golden}

var factionString = map[Faction]string{
	Steel:  "steel",
	Arcane: "arcane",
	Green:  "green",
	Golden: "golden",
}

func (f Faction) String() string {
	if s, ok := factionString[f]; ok {
		return s
	}
	return fmt.Sprintf("faction(%d)", int(f))
}

func (f Faction) Valid() bool {
	return f >= Steel && f <= Golden
}

func FactionForSeat(seat int) Faction {
	return Factions[seat%len(Factions)]
}

func ParseFaction(s string) (Faction, error) {
	for f, name := range factionString {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown faction %q", s)
}

func (f Faction) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid faction %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Faction) UnmarshalText(text []byte) error {
	parsed, err := ParseFaction(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
