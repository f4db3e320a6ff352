package supplies

import "testing"

func TestClassifySupplyColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},

		{"black toner", "Black Toner", Black},
		{"spanish black", "Tóner Negro", Black},
		{"german black", "Schwarz", Black},
		{"french black", "Noir", Black},
		{"bk cartridge", "BK Cartridge", Black},
		{"standalone k", "Toner K", Black},

		{"cyan toner", "Cyan Toner Cartridge", Cyan},
		{"spanish cyan", "Tinta Cian", Cyan},
		{"standalone c", "Toner C", Cyan},
		{"cyan ink not black", "Cyan Ink", Cyan},

		{"magenta toner", "Magenta Toner", Magenta},
		{"standalone m", "Toner M", Magenta},

		{"yellow toner", "Yellow Toner", Yellow},
		{"spanish yellow", "Amarillo", Yellow},
		{"german yellow", "Gelb", Yellow},
		{"french yellow", "Jaune", Yellow},

		{"part number cyan", "TK-8517C", Cyan},
		{"part number in text", "Toner Cartridge (TN-243Y)", Yellow},
		{"mono part number", "TN-760", Black},

		{"black before cyan", "Black and Cyan", Black},

		{"drum unit", "Drum Unit", ""},
		{"black drum", "Black Drum Unit", ""},
		{"waste container", "Waste Container", ""},
		{"fuser", "Fuser Unit", ""},
		{"paper tray", "Paper Tray", ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifySupplyColor(tc.input); got != tc.want {
				t.Errorf("ClassifySupplyColor(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		haystack string
		needles  []string
		want     bool
	}{
		{"black toner", []string{"black", "cyan"}, true},
		{"magenta ink", []string{"black", "cyan"}, false},
		{"", []string{"anything"}, false},
		{"something", []string{}, false},
	}

	for _, tc := range tests {
		if got := containsAny(tc.haystack, tc.needles); got != tc.want {
			t.Errorf("containsAny(%q, %v) = %v, want %v", tc.haystack, tc.needles, got, tc.want)
		}
	}
}
