// Package export writes completed devices to disk: a JSON document with the
// device snapshot and its analysis report, and an integer-keyed CBOR
// re-export of every device together with its SHA-256 digest.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
)

// Integer keys of the re-export, shared with the firmware schema.
type deviceRecord struct {
	Family string      `cbor:"1,keyasint"`
	Pins   []pinRecord `cbor:"2,keyasint"`
}

type pinRecord struct {
	Pin         int          `cbor:"4,keyasint"`
	Events      []string     `cbor:"5,keyasint"`
	Connections []connRecord `cbor:"6,keyasint"`
}

type connRecord struct {
	OtherPin  int `cbor:"7,keyasint"`
	Parameter int `cbor:"8,keyasint"`
	Type      int `cbor:"9,keyasint"`
}

// CBOROptions controls which data goes into the re-export.
type CBOROptions struct {
	// KeepMasked includes strength- and phase-masked connections.
	KeepMasked bool
	// ExcludeEvents drops the named events from every pin.
	ExcludeEvents []string
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{NilContainers: cbor.NilContainerAsEmpty}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeCBOR encodes devs as [{1: family, 2: [{4: pin, 5: [events], 6:
// [{7: other, 8: parameter, 9: type}]}]}] in the given order.
func EncodeCBOR(devs []*model.Device, opts CBOROptions) ([]byte, error) {
	exclude := make(map[string]bool, len(opts.ExcludeEvents))
	for _, e := range opts.ExcludeEvents {
		exclude[e] = true
	}

	records := make([]deviceRecord, 0, len(devs))
	for _, dev := range devs {
		rec := deviceRecord{Family: dev.Family, Pins: make([]pinRecord, 0, len(dev.Pins))}
		for _, pin := range dev.Pins {
			pr := pinRecord{Pin: pin.Number}
			for _, e := range pin.Events {
				if !exclude[e] {
					pr.Events = append(pr.Events, e)
				}
			}
			for _, c := range pin.Connections {
				if c.Hidden() && !opts.KeepMasked {
					continue
				}
				pr.Connections = append(pr.Connections, connRecord{
					OtherPin:  c.OtherPin,
					Parameter: c.Parameter,
					Type:      int(c.Type),
				})
			}
			rec.Pins = append(rec.Pins, pr)
		}
		records = append(records, rec)
	}

	data, err := encMode.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("export: encode cbor: %w", err)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
