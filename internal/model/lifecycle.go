package model

import "fmt"

type (
	SendState   int
	RevealState int
)

const (
	SendComposing SendState = iota
	SendEncrypting
	SendSubmitting
	SendConfirmed
	SendFailed
)

const (
	RevealFetching RevealState = iota
	RevealDecrypting
	RevealRevealed
	RevealFailed
)

func (s SendState) String() string {
	switch s {
	case SendComposing:
		return "composing"
	case SendEncrypting:
		return "encrypting"
	case SendSubmitting:
		return "submitting"
	case SendConfirmed:
		return "confirmed"
	case SendFailed:
		return "failed"
	}
	return fmt.Sprintf("SendState(%d)", int(s))
}

func (s RevealState) String() string {
	switch s {
	case RevealFetching:
		return "fetching"
	case RevealDecrypting:
		return "decrypting"
	case RevealRevealed:
		return "revealed"
	case RevealFailed:
		return "failed"
	}
	return fmt.Sprintf("RevealState(%d)", int(s))
}

// Transition is reported to observers each time a send or reveal moves on.
// Exactly one of Send or Reveal is meaningful, as told by IsReveal.
type Transition struct {
	IsReveal bool
	Send     SendState
	Reveal   RevealState
	Index    uint64
	Status   string
	Err      error
}

func (t Transition) State() string {
	if t.IsReveal {
		return t.Reveal.String()
	}
	return t.Send.String()
}
