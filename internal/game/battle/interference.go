package battle

// interferenceOdds gives, for a pair of story characters, the percent chance
// that the ally (column) steps into an attack or defense of the row card.
type interferenceOdds struct {
	ally    uint16
	attack  uint8
	defense uint8
}

type interferenceRow struct {
	cardID uint16
	allies []interferenceOdds
}

var interferenceTable = []interferenceRow{
	{0x0004, []interferenceOdds{{0x0002, 4, 0}, {0x0002, 0, 15}, {0x0003, 3, 0}, {0x0003, 0, 10}, {0x0006, 1, 0}, {0x0006, 0, 5}, {0x0111, 1, 0}, {0x0111, 0, 5}, {0x0001, 3, 0}, {0x0001, 0, 10}}},
	{0x0002, []interferenceOdds{{0x0004, 4, 0}, {0x0004, 0, 15}, {0x0003, 6, 0}, {0x0003, 0, 20}, {0x0006, 4, 0}, {0x0006, 0, 15}}},
	{0x0003, []interferenceOdds{{0x0004, 4, 0}, {0x0004, 0, 15}, {0x0002, 4, 0}, {0x0002, 0, 15}}},
	{0x0006, []interferenceOdds{{0x0002, 6, 0}, {0x0002, 0, 20}}},
	{0x0111, []interferenceOdds{{0x0004, 1, 0}, {0x0004, 0, 5}, {0x0001, 6, 0}, {0x0001, 0, 20}}},
	{0x0001, []interferenceOdds{{0x0111, 4, 0}, {0x0111, 0, 15}}},
	{0x0112, []interferenceOdds{{0x0113, 6, 0}, {0x0113, 0, 20}, {0x0110, 6, 0}, {0x0110, 0, 20}, {0x0114, 1, 0}, {0x0114, 0, 5}, {0x011D, 2, 0}, {0x011D, 0, 7}}},
	{0x0113, []interferenceOdds{{0x0003, 3, 0}, {0x0003, 0, 10}, {0x0112, 3, 0}, {0x0112, 0, 10}}},
	{0x0110, []interferenceOdds{{0x0005, 3, 0}, {0x0005, 0, 10}, {0x0112, 4, 0}, {0x0112, 0, 15}}},
	{0x0005, []interferenceOdds{{0x0110, 3, 0}, {0x0110, 0, 10}}},
	{0x0114, []interferenceOdds{{0x0005, 3, 0}, {0x0005, 0, 10}, {0x0110, 1, 0}, {0x0110, 0, 5}, {0x0115, 6, 0}, {0x0115, 0, 20}}},
	{0x0115, []interferenceOdds{{0x0004, 1, 0}, {0x0004, 0, 5}, {0x0003, 1, 0}, {0x0003, 0, 5}, {0x0006, 1, 0}, {0x0006, 0, 5}, {0x0112, 1, 0}, {0x0112, 0, 5}, {0x0110, 1, 0}, {0x0110, 0, 5}, {0x0114, 4, 0}, {0x0114, 0, 15}}},
	{0x0008, []interferenceOdds{{0x0007, 6, 0}, {0x0007, 0, 20}, {0x0116, 1, 0}, {0x0116, 0, 5}, {0x011E, 3, 0}, {0x011E, 0, 10}, {0x0118, 6, 0}, {0x0118, 0, 20}}},
	{0x0007, []interferenceOdds{{0x0008, 6, 0}, {0x0008, 0, 20}, {0x0118, 1, 0}, {0x0118, 0, 5}, {0x011B, 3, 0}, {0x011B, 0, 10}}},
	{0x0116, []interferenceOdds{{0x0008, 1, 0}, {0x0008, 0, 5}, {0x011C, 3, 0}, {0x011C, 0, 10}}},
	{0x011A, []interferenceOdds{{0x0119, 4, 0}, {0x0119, 0, 15}, {0x011D, 4, 0}, {0x011D, 0, 15}}},
	{0x0119, []interferenceOdds{{0x011A, 4, 0}, {0x011A, 0, 15}, {0x011D, 4, 0}, {0x011D, 0, 15}}},
	{0x011D, []interferenceOdds{{0x0119, 4, 0}, {0x0119, 0, 15}, {0x011A, 4, 0}, {0x011A, 0, 15}, {0x0112, 1, 0}, {0x0112, 0, 7}}},
	{0x011E, []interferenceOdds{{0x0008, 3, 0}, {0x0008, 0, 10}, {0x0118, 6, 0}, {0x0118, 0, 20}}},
	{0x011C, []interferenceOdds{{0x0116, 4, 0}, {0x0116, 0, 15}, {0x011E, 1, 0}, {0x011E, 0, 5}}},
	{0x0118, []interferenceOdds{{0x011E, 6, 0}, {0x011E, 0, 20}}},
	{0x011B, []interferenceOdds{{0x0007, 3, 0}, {0x0007, 0, 10}, {0x0117, 3, 0}, {0x0117, 0, 10}, {0x011F, 6, 0}, {0x011F, 0, 20}}},
	{0x0117, []interferenceOdds{{0x011F, 3, 0}, {0x011F, 0, 10}, {0x011B, 4, 0}, {0x011B, 0, 15}}},
	{0x011F, []interferenceOdds{{0x0007, 1, 0}, {0x0007, 0, 5}, {0x011B, 6, 0}, {0x011B, 0, 20}, {0x0117, 4, 0}, {0x0117, 0, 15}}},
}

// interferenceChance returns the highest matching percent chance for the
// pair, and false when the pair has no entry at all.
func interferenceChance(cardID, allyID uint16, attack bool) (uint8, bool) {
	var best uint8
	found := false
	for _, row := range interferenceTable {
		if row.cardID != cardID {
			continue
		}
		for _, odds := range row.allies {
			if odds.ally != allyID {
				continue
			}
			v := odds.defense
			if attack {
				v = odds.attack
			}
			if !found || best <= v {
				best = v
			}
			found = true
		}
	}
	return best, found
}
