// Package avatar is the boundary to the external render collaborator. The
// renderer itself (Live2D or otherwise) lives outside this module and is
// driven exclusively through expression, motion, and speaking commands.
package avatar

// Collaborator is the render surface the pipeline drives. Only the emotion
// side-channel and the playback state machine call it.
type Collaborator interface {
	SetExpression(name string) error
	PlayMotion(group string, index int) error
	Speak(speaking bool) error
}

// Noop discards every command. Used when no renderer is connected.
type Noop struct{}

func (Noop) SetExpression(string) error { return nil }
func (Noop) PlayMotion(string, int) error {
	return nil
}
func (Noop) Speak(bool) error { return nil }
