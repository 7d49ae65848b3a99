package framegraph

// Parity is the ping-pong bit p. Passes write copy p and read copy !p; the
// bit toggles at the end of every frame.
type Parity int

// ParityOf returns the parity of frame k.
func ParityOf(frame uint64) Parity {
	return Parity(frame & 1)
}

func (p Parity) Write() int { return int(p) & 1 }
func (p Parity) Read() int  { return 1 - p.Write() }

// Next is the parity of the following frame.
func (p Parity) Next() Parity {
	return Parity(p.Read())
}
