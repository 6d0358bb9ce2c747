package tables

// File is a parsed decoding-table file.
//
//	# bit names
//	event 15 STEP_1_A_HIGH
//
//	family "NRF" {
//	    pin 21 "GPIO0_UART_RX"
//	}
type File struct {
	Entries []*Entry `parser:"@@*"`
}

// Entry is one top-level declaration.
type Entry struct {
	Event  *EventDecl  `parser:"  @@"`
	Family *FamilyDecl `parser:"| @@"`
}

// EventDecl names one bit of the event mask.
type EventDecl struct {
	Bit  int    `parser:"KwEvent @Int"`
	Name string `parser:"@Ident"`
}

// FamilyDecl holds the pin names of the device families whose id contains
// Match (case-insensitive).
type FamilyDecl struct {
	Match string     `parser:"KwFamily @String LBrace"`
	Pins  []*PinDecl `parser:"@@* RBrace"`
}

// PinDecl names one pin.
type PinDecl struct {
	Number int    `parser:"KwPin @Int"`
	Name   string `parser:"@String"`
}

// Events returns the event declarations in file order.
func (f *File) Events() []*EventDecl {
	var out []*EventDecl
	for _, e := range f.Entries {
		if e.Event != nil {
			out = append(out, e.Event)
		}
	}
	return out
}

// Families returns the family declarations in file order.
func (f *File) Families() []*FamilyDecl {
	var out []*FamilyDecl
	for _, e := range f.Entries {
		if e.Family != nil {
			out = append(out, e.Family)
		}
	}
	return out
}
