package ministry

// Diversion is one recorded theft. It is evidence for a later trial and is
// never shown to the player at the time of the roll.
type Diversion struct {
	Seq        uint64 `json:"seq"`
	MinisterID string `json:"minister_id"`
	Office     Office `json:"office"`
	Amount     int    `json:"amount"`
	Reason     string `json:"reason"`
	ActionID   string `json:"action_id"`
	TrueRaw    int    `json:"true_raw"`
}

// DiversionSink receives diversions as they are recorded (e.g. the sqlite
// index). It may be nil.
type DiversionSink interface {
	RecordDiversion(d Diversion)
}

type Ledger struct {
	entries []Diversion
	seq     uint64
	sink    DiversionSink
}

func NewLedger() *Ledger { return &Ledger{} }

func (l *Ledger) SetSink(s DiversionSink) { l.sink = s }

func (l *Ledger) Record(d Diversion) Diversion {
	l.seq++
	d.Seq = l.seq
	l.entries = append(l.entries, d)
	if l.sink != nil {
		l.sink.RecordDiversion(d)
	}
	return d
}

func (l *Ledger) Total(ministerID string) int {
	total := 0
	for _, d := range l.entries {
		if d.MinisterID == ministerID {
			total += d.Amount
		}
	}
	return total
}

func (l *Ledger) Entries() []Diversion {
	out := make([]Diversion, len(l.entries))
	copy(out, l.entries)
	return out
}

// Restore replaces the entries with ones loaded from a snapshot. The sink is
// not told: they were delivered when first recorded.
func (l *Ledger) Restore(entries []Diversion) {
	l.entries = append([]Diversion(nil), entries...)
	l.seq = 0
	for _, d := range l.entries {
		if d.Seq > l.seq {
			l.seq = d.Seq
		}
	}
}
